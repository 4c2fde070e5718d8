package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/gathara/procure-to-pay/internal/document"
	"github.com/gathara/procure-to-pay/internal/models"
	"github.com/gathara/procure-to-pay/internal/service"
	"github.com/gathara/procure-to-pay/internal/workflow"
)

// actorHeader identifies the acting user on mutating endpoints.
const actorHeader = "X-Actor-ID"

// Handlers contains all HTTP request handlers
type Handlers struct {
	requestService *service.RequestService
	engine         *workflow.Engine
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(requestService *service.RequestService, engine *workflow.Engine, logger Logger) *Handlers {
	return &Handlers{
		requestService: requestService,
		engine:         engine,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// DecisionRequest carries an approve or reject action body
type DecisionRequest struct {
	Comment string `json:"comment"`
}

// BulkApproveRequest carries the ids for a bulk approval
type BulkApproveRequest struct {
	RequestIDs []string `json:"request_ids" binding:"required"`
	Comment    string   `json:"comment"`
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

// CreateRequest handles POST /api/requests. It expects a multipart form
// with the request fields and the proforma file.
func (h *Handlers) CreateRequest(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	amount, err := decimal.NewFromString(c.PostForm("amount_estimated"))
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "amount_estimated must be a decimal number")
		return
	}

	upload, ok := h.formUpload(c, "proforma")
	if !ok {
		return
	}

	detail, err := h.requestService.CreateRequest(c.Request.Context(), actor, service.CreateRequestInput{
		Title:           c.PostForm("title"),
		Description:     c.PostForm("description"),
		AmountEstimated: amount,
		Category:        c.PostForm("category"),
		Proforma:        *upload,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: detail})
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	detail, err := h.requestService.GetRequest(c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: detail})
}

// Approve handles PATCH /api/requests/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	h.decide(c, h.engine.Approve)
}

// Reject handles PATCH /api/requests/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	h.decide(c, h.engine.Reject)
}

func (h *Handlers) decide(c *gin.Context, action func(ctx context.Context, requestID string, actor models.Actor, comment string) (*models.PurchaseRequest, error)) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var body DecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			h.respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	req, err := action(c.Request.Context(), c.Param("id"), actor, body.Comment)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// BulkApprove handles POST /api/requests/bulk-approve
func (h *Handlers) BulkApprove(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var body BulkApproveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(body.RequestIDs) == 0 {
		h.respondError(c, http.StatusBadRequest, "request_ids must not be empty")
		return
	}

	result, err := h.engine.BulkApprove(c.Request.Context(), body.RequestIDs, actor, body.Comment)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// IngestDocument handles POST /api/requests/:id/documents/:docType. It
// runs one uploaded document through the extraction pipeline and returns
// the new extraction record.
func (h *Handlers) IngestDocument(c *gin.Context) {
	if _, ok := h.actor(c); !ok {
		return
	}

	docType := c.Param("docType")
	switch docType {
	case models.DocTypeProforma, models.DocTypePO, models.DocTypeReceipt:
	default:
		h.respondError(c, http.StatusBadRequest, "unknown document type: "+docType)
		return
	}

	upload, ok := h.formUpload(c, "file")
	if !ok {
		return
	}

	result, err := h.requestService.IngestDocument(c.Request.Context(), c.Param("id"), docType, *upload)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: result})
}

// SubmitReceipt handles POST /api/requests/:id/receipt
func (h *Handlers) SubmitReceipt(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	upload, ok := h.formUpload(c, "receipt")
	if !ok {
		return
	}

	submission, err := h.requestService.SubmitReceipt(c.Request.Context(), c.Param("id"), actor, *upload)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: submission})
}

// ValidateReceipt handles POST /api/requests/:id/validate. It rescores the
// latest receipt extraction against the purchase order.
func (h *Handlers) ValidateReceipt(c *gin.Context) {
	result, err := h.requestService.ValidateReceipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// GetValidation handles GET /api/requests/:id/validation
func (h *Handlers) GetValidation(c *gin.Context) {
	result, err := h.requestService.GetValidation(c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// GetExtraction handles GET /api/requests/:id/extractions/:docType
func (h *Handlers) GetExtraction(c *gin.Context) {
	docType := c.Param("docType")
	switch docType {
	case models.DocTypeProforma, models.DocTypePO, models.DocTypeReceipt:
	default:
		h.respondError(c, http.StatusBadRequest, "unknown document type: "+docType)
		return
	}

	result, err := h.requestService.GetExtraction(c.Param("id"), docType)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// EnsurePurchaseOrder handles POST /api/requests/:id/purchase-order
func (h *Handlers) EnsurePurchaseOrder(c *gin.Context) {
	po, err := h.requestService.EnsurePurchaseOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: po})
}

// actor resolves the acting user from the request header, responding with
// an error when the header is absent or unknown.
func (h *Handlers) actor(c *gin.Context) (models.Actor, bool) {
	actorID := c.GetHeader(actorHeader)
	if actorID == "" {
		h.respondError(c, http.StatusUnauthorized, "missing "+actorHeader+" header")
		return models.Actor{}, false
	}
	actor, err := h.requestService.ResolveActor(actorID)
	if err != nil {
		h.respondServiceError(c, err)
		return models.Actor{}, false
	}
	return actor, true
}

// formUpload reads one multipart file field into an Upload.
func (h *Handlers) formUpload(c *gin.Context, field string) (*document.Upload, bool) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "missing file field: "+field)
		return nil, false
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "failed to open uploaded file")
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, document.MaxUploadSize+1))
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "failed to read uploaded file")
		return nil, false
	}

	return &document.Upload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}, true
}

// respondServiceError maps application error types onto HTTP statuses.
func (h *Handlers) respondServiceError(c *gin.Context, err error) {
	var violation *workflow.ViolationError
	var notFound *service.NotFoundError
	var forbidden *service.ForbiddenError
	var extraction *document.ExtractionError

	switch {
	case errors.As(err, &violation):
		h.respondError(c, http.StatusBadRequest, violation.Message)
	case errors.As(err, &notFound):
		h.respondError(c, http.StatusNotFound, notFound.Error())
	case errors.As(err, &forbidden):
		h.respondError(c, http.StatusForbidden, forbidden.Error())
	case errors.As(err, &extraction):
		if extraction.Stage == "input" {
			h.respondError(c, http.StatusBadRequest, extraction.Err.Error())
			return
		}
		h.respondError(c, http.StatusServiceUnavailable, "document processing unavailable")
	default:
		h.logger.Error("Unhandled service error", "error", err)
		h.respondError(c, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handlers) respondError(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Success: false, Error: message})
}
