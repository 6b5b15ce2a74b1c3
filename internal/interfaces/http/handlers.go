package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/trip-approval/internal/application/port"
	"github.com/garyjia/trip-approval/internal/application/service"
	appwf "github.com/garyjia/trip-approval/internal/application/workflow"
	"github.com/garyjia/trip-approval/internal/domain/entity"
	domainwf "github.com/garyjia/trip-approval/internal/domain/workflow"
)

const (
	// HeaderActorID names the acting user. The caller is trusted to have authenticated them.
	HeaderActorID = "X-Actor-ID"
	// HeaderActingAsAssignee marks a requester acting in their assigned role on their own trip
	HeaderActingAsAssignee = "X-Acting-As-Assignee"

	actorKey = "actor"
	xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ReportRenderer renders the budget reconciliation workbook of a trip
type ReportRenderer interface {
	Render(trip *entity.TripRequest) ([]byte, error)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	workflow appwf.TripWorkflow
	queries  service.TripQueryService
	reports  ReportRenderer
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	workflow appwf.TripWorkflow,
	queries service.TripQueryService,
	reports ReportRenderer,
	logger Logger,
) *Handlers {
	return &Handlers{
		workflow: workflow,
		queries:  queries,
		reports:  reports,
		logger:   logger,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// RequireActor rejects requests without an actor header
func (h *Handlers) RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing " + HeaderActorID + " header",
			})
			return
		}
		acting, _ := strconv.ParseBool(c.GetHeader(HeaderActingAsAssignee))
		c.Set(actorKey, appwf.Actor{ID: id, ActingAsAssignee: acting})
		c.Next()
	}
}

// CreateTrip handles POST /api/trips
func (h *Handlers) CreateTrip(c *gin.Context) {
	var req CreateTripRequest
	if !h.bind(c, &req) {
		return
	}
	details, err := req.Details.toEntity()
	if err != nil {
		h.writeError(c, err)
		return
	}

	actor := actorFrom(c)
	trip, err := h.workflow.CreateTrip(c.Request.Context(), actor, appwf.CreateTripInput{
		ManagerID: strings.TrimSpace(req.ManagerID),
		Details:   details,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeTrip(c, http.StatusCreated, actor, trip.ID)
}

// UpdateDetails handles PUT /api/trips/:id/details
func (h *Handlers) UpdateDetails(c *gin.Context) {
	var req UpdateDetailsRequest
	if !h.bind(c, &req) {
		return
	}
	details, err := req.Details.toEntity()
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.command(c, func(ctx context.Context, id int64, actor appwf.Actor) (*entity.TripRequest, error) {
		return h.workflow.UpdateDetails(ctx, id, actor, appwf.UpdateDetailsInput{ManagerID: req.ManagerID, Details: details})
	})
}

// CompleteForm handles POST /api/trips/:id/complete-form
func (h *Handlers) CompleteForm(c *gin.Context) {
	h.command(c, h.workflow.CompleteForm)
}

// Submit handles POST /api/trips/:id/submit
func (h *Handlers) Submit(c *gin.Context) {
	h.command(c, h.workflow.Submit)
}

// Assign handles POST /api/trips/:id/assign
func (h *Handlers) Assign(c *gin.Context) {
	var req AssignRequest
	if !h.bind(c, &req) {
		return
	}
	h.command(c, func(ctx context.Context, id int64, actor appwf.Actor) (*entity.TripRequest, error) {
		return h.workflow.AssignOrganizerAndBudget(ctx, id, actor, appwf.AssignInput{
			OrganizerID:   strings.TrimSpace(req.OrganizerID),
			Budget:        req.Budget,
			Comments:      req.Comments,
			InternalNotes: req.InternalNotes,
		})
	})
}

// Return handles POST /api/trips/:id/return
func (h *Handlers) Return(c *gin.Context) {
	var req CommentsRequest
	if !h.bind(c, &req) {
		return
	}
	h.command(c, func(ctx context.Context, id int64, actor appwf.Actor) (*entity.TripRequest, error) {
		return h.workflow.Return(ctx, id, actor, appwf.ReturnInput{Comments: strings.TrimSpace(req.Comments)})
	})
}

// Reject handles POST /api/trips/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	var req RejectRequest
	if !h.bind(c, &req) {
		return
	}
	h.command(c, func(ctx context.Context, id int64, actor appwf.Actor) (*entity.TripRequest, error) {
		return h.workflow.Reject(ctx, id, actor, appwf.RejectInput{
			Reason:   entity.RejectionReason(req.Reason),
			Comments: req.Comments,
		})
	})
}

// Cancel handles POST /api/trips/:id/cancel
func (h *Handlers) Cancel(c *gin.Context) {
	h.command(c, h.workflow.Cancel)
}

// ReturnToDraft handles POST /api/trips/:id/return-to-draft
func (h *Handlers) ReturnToDraft(c *gin.Context) {
	h.command(c, h.workflow.ReturnToDraft)
}

// ConfirmPlan handles POST /api/trips/:id/confirm-plan
func (h *Handlers) ConfirmPlan(c *gin.Context) {
	var req ConfirmPlanRequest
	if !h.bind(c, &req) {
		return
	}
	h.command(c, func(ctx context.Context, id int64, actor appwf.Actor) (*entity.TripRequest, error) {
		return h.workflow.ConfirmPlan(ctx, id, actor, req.toInput())
	})
}

// SubmitExpenses handles POST /api/trips/:id/expenses
func (h *Handlers) SubmitExpenses(c *gin.Context) {
	var req SubmitExpensesRequest
	if !h.bind(c, &req) {
		return
	}
	h.command(c, func(ctx context.Context, id int64, actor appwf.Actor) (*entity.TripRequest, error) {
		return h.workflow.SubmitExpenses(ctx, id, actor, appwf.SubmitExpensesInput{
			Amount:        req.Amount,
			HasNoExpenses: req.HasNoExpenses,
			AttachmentIDs: req.AttachmentIDs,
			Comments:      req.Comments,
		})
	})
}

// ApproveExpenses handles POST /api/trips/:id/expenses/approve
func (h *Handlers) ApproveExpenses(c *gin.Context) {
	h.command(c, h.workflow.ApproveExpenses)
}

// ReturnExpenses handles POST /api/trips/:id/expenses/return
func (h *Handlers) ReturnExpenses(c *gin.Context) {
	var req CommentsRequest
	if !h.bind(c, &req) {
		return
	}
	h.command(c, func(ctx context.Context, id int64, actor appwf.Actor) (*entity.TripRequest, error) {
		return h.workflow.ReturnExpenses(ctx, id, actor, appwf.ReturnInput{Comments: strings.TrimSpace(req.Comments)})
	})
}

// UndoExpenseRecall handles POST /api/trips/:id/expenses/recall
func (h *Handlers) UndoExpenseRecall(c *gin.Context) {
	h.command(c, h.workflow.UndoExpenseRecall)
}

// UndoExpenseApproval handles POST /api/trips/:id/expenses/undo-approval
func (h *Handlers) UndoExpenseApproval(c *gin.Context) {
	h.command(c, h.workflow.UndoExpenseApproval)
}

// GetTrip handles GET /api/trips/:id
func (h *Handlers) GetTrip(c *gin.Context) {
	id, ok := h.tripID(c)
	if !ok {
		return
	}
	h.writeTrip(c, http.StatusOK, actorFrom(c), id)
}

// ListMessages handles GET /api/trips/:id/messages
func (h *Handlers) ListMessages(c *gin.Context) {
	id, ok := h.tripID(c)
	if !ok {
		return
	}
	messages, err := h.queries.ListMessages(c.Request.Context(), actorFrom(c).ID, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if messages == nil {
		messages = []*entity.Message{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: messages})
}

// ListHistory handles GET /api/trips/:id/history
func (h *Handlers) ListHistory(c *gin.Context) {
	id, ok := h.tripID(c)
	if !ok {
		return
	}
	records, err := h.queries.ListHistory(c.Request.Context(), actorFrom(c).ID, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if records == nil {
		records = []*entity.TransitionHistory{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// AvailableCommands handles GET /api/trips/:id/commands
func (h *Handlers) AvailableCommands(c *gin.Context) {
	id, ok := h.tripID(c)
	if !ok {
		return
	}
	commands, err := h.workflow.AvailableCommands(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if commands == nil {
		commands = []domainwf.Trigger{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: CommandsResponse{Commands: commands}})
}

// BudgetReport handles GET /api/trips/:id/report.xlsx
func (h *Handlers) BudgetReport(c *gin.Context) {
	id, ok := h.tripID(c)
	if !ok {
		return
	}
	trip, err := h.queries.CostReport(c.Request.Context(), actorFrom(c).ID, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	data, err := h.reports.Render(trip)
	if err != nil {
		h.writeError(c, fmt.Errorf("render report: %w", err))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="trip-%d-budget.xlsx"`, id))
	c.Data(http.StatusOK, xlsxType, data)
}

// command runs a workflow command on the trip named in the path and
// responds with the trip as the actor may see it
func (h *Handlers) command(c *gin.Context, run func(ctx context.Context, id int64, actor appwf.Actor) (*entity.TripRequest, error)) {
	id, ok := h.tripID(c)
	if !ok {
		return
	}
	actor := actorFrom(c)
	if _, err := run(c.Request.Context(), id, actor); err != nil {
		h.writeError(c, err)
		return
	}
	h.writeTrip(c, http.StatusOK, actor, id)
}

func (h *Handlers) writeTrip(c *gin.Context, status int, actor appwf.Actor, id int64) {
	view, err := h.queries.GetTrip(c.Request.Context(), actor.ID, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(status, Response{Success: true, Data: view})
}

func (h *Handlers) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Info("Invalid request body", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return false
	}
	return true
}

func (h *Handlers) tripID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid trip ID"})
		return 0, false
	}
	return id, true
}

// writeError maps workflow failures to status codes
func (h *Handlers) writeError(c *gin.Context, err error) {
	var wfErr *domainwf.Error
	if errors.As(err, &wfErr) {
		c.JSON(statusForKind(wfErr.Kind), Response{
			Success:       false,
			Error:         wfErr.Error(),
			Kind:          string(wfErr.Kind),
			MissingFields: wfErr.MissingFields,
		})
		return
	}

	if errors.Is(err, port.ErrTripNotFound) {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "trip not found"})
		return
	}

	h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
}

func statusForKind(kind domainwf.Kind) int {
	switch kind {
	case domainwf.KindPermissionDenied:
		return http.StatusForbidden
	case domainwf.KindValidation, domainwf.KindBudget:
		return http.StatusUnprocessableEntity
	case domainwf.KindInvalidTransition, domainwf.KindStaleWrite:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func actorFrom(c *gin.Context) appwf.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(appwf.Actor); ok {
			return actor
		}
	}
	return appwf.Actor{}
}
