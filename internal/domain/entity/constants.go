package entity

// BudgetStatus compares the approved budget with the money actually committed
type BudgetStatus string

const (
	BudgetUnder BudgetStatus = "under_budget"
	BudgetOn    BudgetStatus = "on_budget"
	BudgetOver  BudgetStatus = "over_budget"
)

// RejectionReason is the manager's stated reason for rejecting a trip
type RejectionReason string

const (
	RejectionBudgetExceeded  RejectionReason = "budget_exceeded"
	RejectionTiming          RejectionReason = "timing"
	RejectionNecessity       RejectionReason = "necessity"
	RejectionInformation     RejectionReason = "information"
	RejectionPlanUnsuitable  RejectionReason = "plan_unsuitable"
	RejectionPolicyViolation RejectionReason = "policy_violation"
	RejectionOther           RejectionReason = "other"
)

// IsValid returns true for one of the enumerated rejection reasons
func (r RejectionReason) IsValid() bool {
	switch r {
	case RejectionBudgetExceeded, RejectionTiming, RejectionNecessity, RejectionInformation,
		RejectionPlanUnsuitable, RejectionPolicyViolation, RejectionOther:
		return true
	default:
		return false
	}
}

// Directory group names
const (
	GroupAdmin          = "admin"
	GroupFinance        = "finance"
	GroupTravelApprover = "travel_approver"
)

// Duration type constants for TripDetails
const (
	DurationSingleDay = "single_day"
	DurationMultiDay  = "multi_day"
)

// Plan line item type constants
const (
	ItemTypeTransport     = "transport"
	ItemTypeAccommodation = "accommodation"
	ItemTypeMeals         = "meals"
	ItemTypeRegistration  = "registration"
	ItemTypeOther         = "other"
)

// Message visibility constants
const (
	VisibilityPublic     = "public"
	VisibilityRestricted = "restricted"
)

// SystemActorID is recorded as the author of scheduler-generated messages
const SystemActorID = "system"
