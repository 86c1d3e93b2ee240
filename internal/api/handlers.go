package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/opencorp/regflow/internal/application/service"
	"github.com/opencorp/regflow/internal/application/workflow"
	"github.com/opencorp/regflow/internal/domain/entity"
	domainwf "github.com/opencorp/regflow/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	registry  service.DefinitionRegistry
	instances service.InstanceStore
	engine    workflow.Engine
	consent   service.ConsentGate
	trail     service.AuditTrail
	exporter  *service.AuditExporter
	logger    *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	registry service.DefinitionRegistry,
	instances service.InstanceStore,
	engine workflow.Engine,
	consent service.ConsentGate,
	trail service.AuditTrail,
	exporter *service.AuditExporter,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		registry:  registry,
		instances: instances,
		engine:    engine,
		consent:   consent,
		trail:     trail,
		exporter:  exporter,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CreateInstanceRequest is the body of POST /api/v1/instances
type CreateInstanceRequest struct {
	DefinitionCode string `json:"definition_code" binding:"required"`
	TargetType     string `json:"target_type" binding:"required"`
	TargetID       int64  `json:"target_id" binding:"required"`
	CreatedByID    string `json:"created_by_id" binding:"required"`
	Context        string `json:"context"`
}

// PerformActionRequest is the body of POST /api/v1/instances/:id/actions
type PerformActionRequest struct {
	ActionKey string                 `json:"action_key" binding:"required"`
	ActorID   string                 `json:"actor_id" binding:"required"`
	Roles     []string               `json:"roles"`
	Comment   string                 `json:"comment"`
	Payload   map[string]interface{} `json:"payload"`
}

// RecordConsentRequest is the body of POST /api/v1/instances/:id/consents
type RecordConsentRequest struct {
	ActionKey   string `json:"action_key" binding:"required"`
	ApproverRef string `json:"approver_ref" binding:"required"`
	Decision    string `json:"decision" binding:"required"`
	Comment     string `json:"comment"`
}

// TransitionResponse is the result of a successful transition
type TransitionResponse struct {
	InstanceID int64  `json:"instance_id"`
	ActionKey  string `json:"action_key"`
	NextState  string `json:"next_state"`
	Final      bool   `json:"final"`
}

// HistoryResponse is one page of an instance's audit trail
type HistoryResponse struct {
	Records  []*entity.AuditRecord `json:"records"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "regflow",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// RegisterDefinition handles POST /api/v1/definitions
func (h *Handlers) RegisterDefinition(c *gin.Context) {
	var def entity.WorkflowDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid definition body: " + err.Error()})
		return
	}

	registered, err := h.registry.EnsureDefinition(c.Request.Context(), &def)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: registered})
}

// GetDefinition handles GET /api/v1/definitions/:code
func (h *Handlers) GetDefinition(c *gin.Context) {
	def, err := h.registry.GetDefinition(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: def})
}

// CreateInstance handles POST /api/v1/instances
func (h *Handlers) CreateInstance(c *gin.Context) {
	var req CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	instance, err := h.instances.CreateInstance(c.Request.Context(),
		req.DefinitionCode, req.TargetType, req.TargetID, req.CreatedByID, req.Context)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: instance})
}

// GetInstance handles GET /api/v1/instances/:id
func (h *Handlers) GetInstance(c *gin.Context) {
	id, ok := h.instanceID(c)
	if !ok {
		return
	}

	instance, err := h.instances.GetInstance(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: instance})
}

// PerformAction handles POST /api/v1/instances/:id/actions
func (h *Handlers) PerformAction(c *gin.Context) {
	id, ok := h.instanceID(c)
	if !ok {
		return
	}

	var req PerformActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	actor := workflow.Actor{ID: req.ActorID, Roles: req.Roles}
	result, err := h.engine.PerformAction(c.Request.Context(), id, req.ActionKey, actor, req.Comment, req.Payload)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: TransitionResponse{
		InstanceID: result.Instance.ID,
		ActionKey:  result.Action.Key,
		NextState:  result.NextState.Key,
		Final:      result.NextState.Final,
	}})
}

// RecordConsent handles POST /api/v1/instances/:id/consents
func (h *Handlers) RecordConsent(c *gin.Context) {
	id, ok := h.instanceID(c)
	if !ok {
		return
	}

	var req RecordConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	err := h.consent.RecordDecision(c.Request.Context(), id, req.ActionKey, req.ApproverRef, req.Decision, req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status, err := h.consent.Evaluate(c.Request.Context(), id, req.ActionKey)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"satisfied":   status.Satisfied,
		"vetoed":      status.Vetoed,
		"outstanding": len(status.Outstanding),
	}})
}

// GetHistory handles GET /api/v1/instances/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	id, ok := h.instanceID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	records, total, err := h.trail.History(c.Request.Context(), id, page, pageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if records == nil {
		records = []*entity.AuditRecord{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: HistoryResponse{
		Records:  records,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}})
}

// ExportHistory handles GET /api/v1/instances/:id/history/export
func (h *Handlers) ExportHistory(c *gin.Context) {
	id, ok := h.instanceID(c)
	if !ok {
		return
	}

	// Fail with a JSON 404 before streaming the workbook.
	if _, err := h.instances.GetInstance(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	filename := fmt.Sprintf("instance-%d-history.xlsx", id)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := h.exporter.WriteXLSX(c.Request.Context(), id, c.Writer); err != nil {
		h.logger.Error("History export failed", zap.Int64("instance_id", id), zap.Error(err))
		c.Abort()
	}
}

// instanceID parses the :id path parameter, responding 400 on garbage.
func (h *Handlers) instanceID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid instance ID"})
		return 0, false
	}
	return id, true
}

// respondError maps domain errors onto HTTP statuses. Error text from the
// domain layer is safe to expose; consent-pending errors in particular never
// name individual approvers.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domainwf.ErrDefinitionNotFound),
		errors.Is(err, domainwf.ErrInstanceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domainwf.ErrForbidden),
		errors.Is(err, domainwf.ErrNotARequiredApprover):
		status = http.StatusForbidden
	case errors.Is(err, domainwf.ErrDefinitionConflict),
		errors.Is(err, domainwf.ErrActionNotAllowed),
		errors.Is(err, domainwf.ErrInstanceTerminated),
		errors.Is(err, domainwf.ErrConsentPending),
		errors.Is(err, domainwf.ErrConsentVetoed):
		status = http.StatusConflict
	case errors.Is(err, domainwf.ErrDefinitionCorrupt),
		errors.Is(err, domainwf.ErrInvalidInstanceState),
		errors.Is(err, domainwf.ErrPersistence):
		h.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
		return
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(status, Response{Success: false, Error: "internal error"})
		return
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}
