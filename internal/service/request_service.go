// Package service orchestrates the procurement operations exposed over
// HTTP: request creation with proforma ingestion, receipt submission with
// validation, and read models.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/document"
	"github.com/gathara/procure-to-pay/internal/models"
	"github.com/gathara/procure-to-pay/internal/purchaseorder"
	"github.com/gathara/procure-to-pay/internal/repository"
	"github.com/gathara/procure-to-pay/internal/risk"
	"github.com/gathara/procure-to-pay/internal/validation"
	"github.com/gathara/procure-to-pay/pkg/database"
)

// RequestService is the application facade over the pipeline, validation
// engine, and purchase order generator.
type RequestService struct {
	db             *database.DB
	requestRepo    *repository.RequestRepository
	itemRepo       *repository.RequestItemRepository
	approvalRepo   *repository.ApprovalRepository
	poRepo         *repository.PurchaseOrderRepository
	extractionRepo *repository.ExtractionRepository
	validationRepo *repository.ValidationRepository
	userRepo       *repository.UserRepository
	pipeline       *document.Pipeline
	validator      *validation.Engine
	generator      *purchaseorder.Generator
	logger         *zap.Logger
}

// NewRequestService creates a request service.
func NewRequestService(
	db *database.DB,
	requestRepo *repository.RequestRepository,
	itemRepo *repository.RequestItemRepository,
	approvalRepo *repository.ApprovalRepository,
	poRepo *repository.PurchaseOrderRepository,
	extractionRepo *repository.ExtractionRepository,
	validationRepo *repository.ValidationRepository,
	userRepo *repository.UserRepository,
	pipeline *document.Pipeline,
	validator *validation.Engine,
	generator *purchaseorder.Generator,
	logger *zap.Logger,
) *RequestService {
	return &RequestService{
		db:             db,
		requestRepo:    requestRepo,
		itemRepo:       itemRepo,
		approvalRepo:   approvalRepo,
		poRepo:         poRepo,
		extractionRepo: extractionRepo,
		validationRepo: validationRepo,
		userRepo:       userRepo,
		pipeline:       pipeline,
		validator:      validator,
		generator:      generator,
		logger:         logger,
	}
}

// CreateRequestInput carries the fields for a new purchase request plus
// its mandatory proforma document.
type CreateRequestInput struct {
	Title           string
	Description     string
	AmountEstimated decimal.Decimal
	Category        string
	Proforma        document.Upload
}

// RequestDetail is the read model for one purchase request.
type RequestDetail struct {
	Request       *models.PurchaseRequest  `json:"request"`
	Items         []models.RequestItem     `json:"items"`
	Approvals     []models.Approval        `json:"approvals"`
	PurchaseOrder *models.PurchaseOrder    `json:"purchase_order,omitempty"`
	Validation    *models.ValidationResult `json:"validation,omitempty"`
	Risk          risk.Summary             `json:"risk_summary"`
}

// ReceiptSubmission is the outcome of submitting a receipt.
type ReceiptSubmission struct {
	Request    *RequestDetail           `json:"request"`
	Extraction *models.ExtractionResult `json:"extraction"`
	Validation *models.ValidationResult `json:"validation"`
}

// ResolveActor looks up the acting user, failing when unknown.
func (s *RequestService) ResolveActor(actorID string) (models.Actor, error) {
	actor, err := s.userRepo.GetByID(actorID)
	if err != nil {
		return models.Actor{}, err
	}
	if actor == nil {
		return models.Actor{}, &NotFoundError{Resource: "user", ID: actorID}
	}
	return *actor, nil
}

// CreateRequest persists a new pending request and runs the proforma
// through the ingestion pipeline, denormalizing its commercial data.
func (s *RequestService) CreateRequest(ctx context.Context, actor models.Actor, input CreateRequestInput) (*RequestDetail, error) {
	if actor.Role != models.RoleStaff {
		return nil, &ForbiddenError{Message: "only staff members can create purchase requests"}
	}
	if input.AmountEstimated.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	req := &models.PurchaseRequest{
		Title:                  input.Title,
		Description:            input.Description,
		AmountEstimated:        input.AmountEstimated,
		Category:               input.Category,
		CreatedBy:              actor.ID,
		CurrentApprovalLevel:   1,
		RequiredApprovalLevels: 2,
	}
	err := s.db.WithTransaction(func(tx *sql.Tx) error {
		return s.requestRepo.Create(tx, req)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.pipeline.Ingest(ctx, req, models.DocTypeProforma, input.Proforma); err != nil {
		return nil, err
	}
	return s.detail(req)
}

// IngestDocument runs one uploaded document through the extraction
// pipeline for the given request.
func (s *RequestService) IngestDocument(ctx context.Context, requestID, docType string, upload document.Upload) (*models.ExtractionResult, error) {
	req, err := s.loadRequest(requestID)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Ingest(ctx, req, docType, upload)
}

// SubmitReceipt ingests the receipt, scores it against the purchase
// order's structured data, and persists the validation result (replacing
// any previous one).
func (s *RequestService) SubmitReceipt(ctx context.Context, requestID string, actor models.Actor, upload document.Upload) (*ReceiptSubmission, error) {
	req, err := s.loadRequest(requestID)
	if err != nil {
		return nil, err
	}
	if req.CreatedBy != actor.ID {
		return nil, &ForbiddenError{Message: "only the request owner can submit a receipt"}
	}
	if req.Status != models.StatusApproved {
		return nil, &ForbiddenError{Message: "receipts can only be submitted for approved requests"}
	}
	po, err := s.poRepo.GetByRequestID(nil, requestID)
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, &ForbiddenError{Message: "purchase order not available for this request"}
	}

	extraction, err := s.pipeline.Ingest(ctx, req, models.DocTypeReceipt, upload)
	if err != nil {
		return nil, err
	}

	return s.validateReceipt(ctx, req, po, extraction)
}

// ValidateReceipt rescores the latest receipt extraction against the
// purchase order without re-ingesting the document.
func (s *RequestService) ValidateReceipt(ctx context.Context, requestID string) (*models.ValidationResult, error) {
	req, err := s.loadRequest(requestID)
	if err != nil {
		return nil, err
	}
	po, err := s.poRepo.GetByRequestID(nil, requestID)
	if err != nil {
		return nil, err
	}
	if po == nil {
		return nil, &NotFoundError{Resource: "purchase order", ID: requestID}
	}
	extraction, err := s.extractionRepo.GetLatestByType(nil, requestID, models.DocTypeReceipt)
	if err != nil {
		return nil, err
	}
	if extraction == nil {
		return nil, &NotFoundError{Resource: "receipt extraction", ID: requestID}
	}

	submission, err := s.validateReceipt(ctx, req, po, extraction)
	if err != nil {
		return nil, err
	}
	return submission.Validation, nil
}

func (s *RequestService) validateReceipt(ctx context.Context, req *models.PurchaseRequest, po *models.PurchaseOrder, extraction *models.ExtractionResult) (*ReceiptSubmission, error) {
	outcome := s.validator.Validate(ctx, po.StructuredData, extraction.FinalData)

	details, err := json.Marshal(outcome.Details)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal validation details: %w", err)
	}
	result := &models.ValidationResult{
		RequestID: req.ID,
		IsMatch:   outcome.IsMatch,
		Score:     outcome.Score,
		Details:   details,
	}
	err = s.db.WithTransaction(func(tx *sql.Tx) error {
		return s.validationRepo.Upsert(tx, result)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Receipt validated",
		zap.String("request_id", req.ID),
		zap.Float64("score", result.Score),
		zap.Bool("is_match", result.IsMatch))

	detail, err := s.detail(req)
	if err != nil {
		return nil, err
	}
	return &ReceiptSubmission{Request: detail, Extraction: extraction, Validation: result}, nil
}

// EnsurePurchaseOrder materializes the purchase order for an approved
// request. Calling it again returns the existing order unchanged.
func (s *RequestService) EnsurePurchaseOrder(ctx context.Context, requestID string) (*models.PurchaseOrder, error) {
	var po *models.PurchaseOrder
	err := s.db.WithTransaction(func(tx *sql.Tx) error {
		req, err := s.requestRepo.GetByID(tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return &NotFoundError{Resource: "purchase request", ID: requestID}
		}
		if req.Status != models.StatusApproved {
			return &ForbiddenError{Message: "purchase orders exist only for approved requests"}
		}
		po, err = s.generator.Ensure(tx, req)
		if err != nil {
			return err
		}
		return s.requestRepo.UpdateWorkflowState(tx, req)
	})
	if err != nil {
		return nil, err
	}
	return po, nil
}

// GetRequest returns the full read model for one request.
func (s *RequestService) GetRequest(requestID string) (*RequestDetail, error) {
	req, err := s.loadRequest(requestID)
	if err != nil {
		return nil, err
	}
	return s.detail(req)
}

// GetExtraction returns the latest extraction of docType for the request.
func (s *RequestService) GetExtraction(requestID, docType string) (*models.ExtractionResult, error) {
	result, err := s.extractionRepo.GetLatestByType(nil, requestID, docType)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, &NotFoundError{Resource: "extraction result", ID: requestID}
	}
	return result, nil
}

// GetValidation returns the request's validation result.
func (s *RequestService) GetValidation(requestID string) (*models.ValidationResult, error) {
	result, err := s.validationRepo.GetByRequestID(requestID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, &NotFoundError{Resource: "validation result", ID: requestID}
	}
	return result, nil
}

func (s *RequestService) loadRequest(requestID string) (*models.PurchaseRequest, error) {
	req, err := s.requestRepo.GetByID(nil, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &NotFoundError{Resource: "purchase request", ID: requestID}
	}
	return req, nil
}

func (s *RequestService) detail(req *models.PurchaseRequest) (*RequestDetail, error) {
	items, err := s.itemRepo.ListByRequest(req.ID)
	if err != nil {
		return nil, err
	}
	approvals, err := s.approvalRepo.ListByRequest(req.ID)
	if err != nil {
		return nil, err
	}
	po, err := s.poRepo.GetByRequestID(nil, req.ID)
	if err != nil {
		return nil, err
	}
	validationResult, err := s.validationRepo.GetByRequestID(req.ID)
	if err != nil {
		return nil, err
	}

	return &RequestDetail{
		Request:       req,
		Items:         items,
		Approvals:     approvals,
		PurchaseOrder: po,
		Validation:    validationResult,
		Risk:          risk.Classify(req),
	}, nil
}
