package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/document"
	"github.com/gathara/procure-to-pay/internal/models"
	"github.com/gathara/procure-to-pay/internal/purchaseorder"
	"github.com/gathara/procure-to-pay/internal/repository"
	"github.com/gathara/procure-to-pay/internal/risk"
	"github.com/gathara/procure-to-pay/internal/storage"
	"github.com/gathara/procure-to-pay/internal/validation"
	"github.com/gathara/procure-to-pay/migrations"
	"github.com/gathara/procure-to-pay/pkg/database"
)

// stubTokenizer returns canned OCR text without touching any backend.
type stubTokenizer struct {
	text string
}

func (s *stubTokenizer) Extract(ctx context.Context, upload document.Upload) (string, []models.PositionedToken, error) {
	return s.text, nil, nil
}

// stubStructurer returns canned structured data per document type.
type stubStructurer struct {
	byDocType map[string]models.DocumentData
}

func (s *stubStructurer) Structure(ctx context.Context, rawText, docType string, baseline models.DocumentData) models.DocumentData {
	if data, ok := s.byDocType[docType]; ok {
		return data
	}
	return models.BlankDocumentData()
}

func (s *stubStructurer) Compare(ctx context.Context, po, receipt models.DocumentData) json.RawMessage {
	return nil
}

type serviceFixture struct {
	svc        *RequestService
	userRepo   *repository.UserRepository
	structurer *stubStructurer
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).Run(migrations.FS, "."))

	requestRepo := repository.NewRequestRepository(db.DB, logger)
	itemRepo := repository.NewRequestItemRepository(db.DB, logger)
	approvalRepo := repository.NewApprovalRepository(db.DB, logger)
	poRepo := repository.NewPurchaseOrderRepository(db.DB, logger)
	extractionRepo := repository.NewExtractionRepository(db.DB, logger)
	validationRepo := repository.NewValidationRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)

	blobStore, err := storage.NewLocalBlobStore(t.TempDir(), "http://localhost/files", logger)
	require.NoError(t, err)

	structurer := &stubStructurer{byDocType: map[string]models.DocumentData{}}
	pipeline := document.NewPipeline(
		db,
		blobStore,
		&stubTokenizer{text: "Acme Supplies Ltd\nTotal: USD 1,000.00"},
		structurer,
		extractionRepo,
		requestRepo,
		itemRepo,
		time.Second,
		logger,
	)

	svc := NewRequestService(
		db,
		requestRepo,
		itemRepo,
		approvalRepo,
		poRepo,
		extractionRepo,
		validationRepo,
		userRepo,
		pipeline,
		validation.NewEngine(nil, time.Second, logger),
		purchaseorder.NewGenerator(poRepo, extractionRepo, blobStore, logger),
		logger,
	)

	return &serviceFixture{svc: svc, userRepo: userRepo, structurer: structurer}
}

func (f *serviceFixture) seedUser(t *testing.T, id, role string) models.Actor {
	t.Helper()
	actor := models.Actor{
		ID:       id,
		Name:     id,
		FullName: "User " + id,
		Email:    id + "@example.com",
		Role:     role,
	}
	require.NoError(t, f.userRepo.Create(nil, &actor))
	return actor
}

func proformaUpload() document.Upload {
	return document.Upload{Filename: "proforma.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
}

func receiptUpload() document.Upload {
	return document.Upload{Filename: "receipt.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
}

func acmeData() models.DocumentData {
	return models.DocumentData{
		VendorName:  "Acme Supplies Ltd",
		Currency:    "USD",
		TotalAmount: decimal.NewFromInt(1000),
		Items: []models.DocumentItem{
			{Name: "Laptop", Quantity: 2, UnitPrice: decimal.NewFromInt(500)},
		},
	}
}

func TestCreateRequestStaffOnly(t *testing.T) {
	f := newServiceFixture(t)
	approver := f.seedUser(t, "mgr-1", models.RoleApproverL1)

	_, err := f.svc.CreateRequest(context.Background(), approver, CreateRequestInput{
		Title:           "Laptops",
		AmountEstimated: decimal.NewFromInt(100),
		Proforma:        proformaUpload(),
	})

	var forbidden *ForbiddenError
	require.ErrorAs(t, err, &forbidden)
}

func TestCreateRequestRejectsNonPositiveAmount(t *testing.T) {
	f := newServiceFixture(t)
	staff := f.seedUser(t, "staff-1", models.RoleStaff)

	_, err := f.svc.CreateRequest(context.Background(), staff, CreateRequestInput{
		Title:           "Laptops",
		AmountEstimated: decimal.Zero,
		Proforma:        proformaUpload(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount must be greater than zero")
}

func TestCreateRequestIngestsProforma(t *testing.T) {
	f := newServiceFixture(t)
	staff := f.seedUser(t, "staff-1", models.RoleStaff)
	f.structurer.byDocType[models.DocTypeProforma] = acmeData()

	detail, err := f.svc.CreateRequest(context.Background(), staff, CreateRequestInput{
		Title:           "Laptops",
		Description:     "Replacement hardware",
		AmountEstimated: decimal.NewFromInt(900),
		Category:        "IT",
		Proforma:        proformaUpload(),
	})
	require.NoError(t, err)

	req := detail.Request
	assert.Regexp(t, `^REQ-\d{8}-[0-9A-F]{5}$`, req.Reference)
	assert.Equal(t, models.StatusPending, req.Status)
	assert.Equal(t, 1, req.CurrentApprovalLevel)
	assert.Equal(t, 2, req.RequiredApprovalLevels)
	assert.Equal(t, "Acme Supplies Ltd", req.VendorName)
	assert.True(t, req.AmountFromProforma.Equal(decimal.NewFromInt(1000)))
	assert.NotEmpty(t, req.ProformaURL)

	require.Len(t, detail.Items, 1)
	assert.Equal(t, "Laptop", detail.Items[0].Name)
	assert.Equal(t, risk.LevelLow, detail.Risk.Level)
}

func TestIngestDocumentAppendsExtraction(t *testing.T) {
	f := newServiceFixture(t)
	staff := f.seedUser(t, "staff-1", models.RoleStaff)
	f.structurer.byDocType[models.DocTypeProforma] = acmeData()

	detail, err := f.svc.CreateRequest(context.Background(), staff, CreateRequestInput{
		Title:           "Laptops",
		AmountEstimated: decimal.NewFromInt(900),
		Proforma:        proformaUpload(),
	})
	require.NoError(t, err)
	id := detail.Request.ID

	f.structurer.byDocType[models.DocTypeReceipt] = acmeData()
	result, err := f.svc.IngestDocument(context.Background(), id, models.DocTypeReceipt, receiptUpload())
	require.NoError(t, err)
	assert.Equal(t, models.DocTypeReceipt, result.DocType)
	assert.Equal(t, models.EngineModel, result.EngineUsed)
	assert.NotEmpty(t, result.DocumentURL)

	// The receipt locator lands on the request and the record is readable
	// through the extraction lookup.
	updated, err := f.svc.GetRequest(id)
	require.NoError(t, err)
	assert.Equal(t, result.DocumentURL, updated.Request.ReceiptURL)

	latest, err := f.svc.GetExtraction(id, models.DocTypeReceipt)
	require.NoError(t, err)
	assert.Equal(t, result.ID, latest.ID)

	var notFound *NotFoundError
	_, err = f.svc.IngestDocument(context.Background(), "missing", models.DocTypeReceipt, receiptUpload())
	require.ErrorAs(t, err, &notFound)
}

func TestSubmitReceiptGuards(t *testing.T) {
	f := newServiceFixture(t)
	staff := f.seedUser(t, "staff-1", models.RoleStaff)
	other := f.seedUser(t, "staff-2", models.RoleStaff)
	f.structurer.byDocType[models.DocTypeProforma] = acmeData()

	detail, err := f.svc.CreateRequest(context.Background(), staff, CreateRequestInput{
		Title:           "Laptops",
		AmountEstimated: decimal.NewFromInt(900),
		Proforma:        proformaUpload(),
	})
	require.NoError(t, err)
	id := detail.Request.ID

	var forbidden *ForbiddenError

	// Not the owner.
	_, err = f.svc.SubmitReceipt(context.Background(), id, other, receiptUpload())
	require.ErrorAs(t, err, &forbidden)

	// Owner, but the request is still pending.
	_, err = f.svc.SubmitReceipt(context.Background(), id, staff, receiptUpload())
	require.ErrorAs(t, err, &forbidden)
	assert.Contains(t, forbidden.Error(), "approved")

	// Unknown request.
	var notFound *NotFoundError
	_, err = f.svc.SubmitReceipt(context.Background(), "missing", staff, receiptUpload())
	require.ErrorAs(t, err, &notFound)
}

func TestSubmitReceiptScoresAndPersists(t *testing.T) {
	f := newServiceFixture(t)
	staff := f.seedUser(t, "staff-1", models.RoleStaff)
	f.structurer.byDocType[models.DocTypeProforma] = acmeData()
	f.structurer.byDocType[models.DocTypeReceipt] = acmeData()

	detail, err := f.svc.CreateRequest(context.Background(), staff, CreateRequestInput{
		Title:           "Laptops",
		AmountEstimated: decimal.NewFromInt(900),
		Proforma:        proformaUpload(),
	})
	require.NoError(t, err)
	id := detail.Request.ID

	approveAtAllLevels(t, f, id)

	_, err = f.svc.EnsurePurchaseOrder(context.Background(), id)
	require.NoError(t, err)

	submission, err := f.svc.SubmitReceipt(context.Background(), id, staff, receiptUpload())
	require.NoError(t, err)

	require.NotNil(t, submission.Validation)
	assert.True(t, submission.Validation.IsMatch)
	assert.Equal(t, 1.0, submission.Validation.Score)
	assert.NotEmpty(t, submission.Extraction.DocumentURL)
	assert.Equal(t, submission.Extraction.DocumentURL, submission.Request.Request.ReceiptURL)

	stored, err := f.svc.GetValidation(id)
	require.NoError(t, err)
	assert.Equal(t, submission.Validation.Score, stored.Score)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(stored.Details, &details))
	assert.Contains(t, details, "vendor_match")
	assert.Contains(t, details, "total_amount_match")

	// Re-validation replaces the stored result rather than adding one.
	rescored, err := f.svc.ValidateReceipt(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, stored.Score, rescored.Score)
}

func TestEnsurePurchaseOrderRequiresApproval(t *testing.T) {
	f := newServiceFixture(t)
	staff := f.seedUser(t, "staff-1", models.RoleStaff)

	detail, err := f.svc.CreateRequest(context.Background(), staff, CreateRequestInput{
		Title:           "Laptops",
		AmountEstimated: decimal.NewFromInt(900),
		Proforma:        proformaUpload(),
	})
	require.NoError(t, err)

	_, err = f.svc.EnsurePurchaseOrder(context.Background(), detail.Request.ID)
	var forbidden *ForbiddenError
	require.ErrorAs(t, err, &forbidden)
}

func TestResolveActor(t *testing.T) {
	f := newServiceFixture(t)
	staff := f.seedUser(t, "staff-1", models.RoleStaff)

	got, err := f.svc.ResolveActor(staff.ID)
	require.NoError(t, err)
	assert.Equal(t, staff.Role, got.Role)

	_, err = f.svc.ResolveActor("ghost")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

// approveAtAllLevels walks the request straight to APPROVED through the
// repositories, bypassing the workflow engine.
func approveAtAllLevels(t *testing.T, f *serviceFixture, requestID string) {
	t.Helper()
	req, err := f.svc.requestRepo.GetByID(nil, requestID)
	require.NoError(t, err)
	require.NotNil(t, req, fmt.Sprintf("request %s not found", requestID))

	req.Status = models.StatusApproved
	req.RequiredApprovalLevels = 0
	require.NoError(t, f.svc.requestRepo.UpdateWorkflowState(nil, req))
}
