// Package access resolves what an actor may do on a trip.
package access

import "github.com/garyjia/trip-approval/internal/domain/entity"

// Capabilities is the set of roles an actor holds on one trip
type Capabilities struct {
	// Employee is set for the trip's requester
	Employee bool
	// Manager is set for the assigned travel approver
	Manager bool
	// Organizer is set for the assigned organizer
	Organizer bool
	// Finance may approve or return submitted expenses
	Finance bool
	// FinanceOfficer is a finance group member, distinct from the organizer
	FinanceOfficer bool
	// Admin may stand in for the manager and the organizer
	Admin bool
	// CanSeeCosts may read budget and cost fields
	CanSeeCosts bool
}

// RoleResolver computes capability sets
type RoleResolver struct{}

// NewRoleResolver creates a role resolver
func NewRoleResolver() *RoleResolver {
	return &RoleResolver{}
}

// Resolve returns the capabilities of user on trip.
//
// The requester never holds management roles on their own trip unless
// actingAsAssignee is set and the requester is the matching assignee.
// Group membership (admin, finance) never applies to the requester's own trip.
func (r *RoleResolver) Resolve(user *entity.User, trip *entity.TripRequest, actingAsAssignee bool) Capabilities {
	if user == nil || trip == nil || user.ID == "" {
		return Capabilities{}
	}

	isRequester := user.ID == trip.RequesterID
	manage := !isRequester || actingAsAssignee

	caps := Capabilities{
		Employee:  isRequester,
		Manager:   manage && trip.ManagerID != "" && user.ID == trip.ManagerID,
		Organizer: manage && trip.OrganizerID != "" && user.ID == trip.OrganizerID,
	}

	if !isRequester {
		caps.Admin = user.InGroup(entity.GroupAdmin)
		caps.FinanceOfficer = user.InGroup(entity.GroupFinance)
	}
	caps.Finance = caps.FinanceOfficer || caps.Organizer || caps.Admin
	caps.CanSeeCosts = caps.Manager || caps.Organizer || caps.Finance

	return caps
}

// CanManageRequest reports whether the actor may act as travel approver
func (c Capabilities) CanManageRequest() bool {
	return c.Manager || c.Admin
}

// CanOrganize reports whether the actor may confirm the trip plan
func (c Capabilities) CanOrganize() bool {
	return c.Organizer || c.Admin
}

// CanReviewExpenses reports whether the actor may approve or return expenses
func (c Capabilities) CanReviewExpenses() bool {
	return c.Organizer || c.Finance || c.Admin
}

// CanReopenApproval reports whether the actor may undo an expense approval
func (c Capabilities) CanReopenApproval() bool {
	return c.FinanceOfficer || c.Admin
}

// EligibleApprover reports whether user may be named travel approver of a trip
func EligibleApprover(user *entity.User) bool {
	return user.InGroup(entity.GroupTravelApprover) || user.InGroup(entity.GroupAdmin)
}
