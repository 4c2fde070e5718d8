package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/models"
	"github.com/gathara/procure-to-pay/internal/repository"
	"github.com/gathara/procure-to-pay/migrations"
	"github.com/gathara/procure-to-pay/pkg/database"
)

// fakeBlobStore records uploads and returns deterministic locators.
type fakeBlobStore struct {
	uploads []string
	err     error
}

func (f *fakeBlobStore) Upload(data []byte, pathPrefix, filename, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	locator := fmt.Sprintf("http://blobs/%s/%s", pathPrefix, filename)
	f.uploads = append(f.uploads, locator)
	return locator, nil
}

// fakeTokenizer returns canned OCR text.
type fakeTokenizer struct {
	text string
	err  error
}

func (f *fakeTokenizer) Extract(ctx context.Context, upload Upload) (string, []models.PositionedToken, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return f.text, nil, nil
}

// fakeStructurer returns canned structured data and records the baseline
// hint it was offered.
type fakeStructurer struct {
	data         models.DocumentData
	lastBaseline models.DocumentData
}

func (f *fakeStructurer) Structure(ctx context.Context, rawText, docType string, baseline models.DocumentData) models.DocumentData {
	f.lastBaseline = baseline
	return f.data
}

func (f *fakeStructurer) Compare(ctx context.Context, po, receipt models.DocumentData) json.RawMessage {
	return nil
}

type pipelineFixture struct {
	db          *database.DB
	requestRepo *repository.RequestRepository
	itemRepo    *repository.RequestItemRepository
	blobStore   *fakeBlobStore
	tokenizer   *fakeTokenizer
	structurer  *fakeStructurer
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
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

	return &pipelineFixture{
		db:          db,
		requestRepo: repository.NewRequestRepository(db.DB, logger),
		itemRepo:    repository.NewRequestItemRepository(db.DB, logger),
		blobStore:   &fakeBlobStore{},
		tokenizer:   &fakeTokenizer{text: "Acme Supplies Ltd\nTotal: USD 1,000.00"},
		structurer:  &fakeStructurer{data: models.BlankDocumentData()},
	}
}

func (f *pipelineFixture) pipeline(t *testing.T) *Pipeline {
	t.Helper()
	logger := zap.NewNop()
	return NewPipeline(
		f.db,
		f.blobStore,
		f.tokenizer,
		f.structurer,
		repository.NewExtractionRepository(f.db.DB, logger),
		f.requestRepo,
		f.itemRepo,
		time.Second,
		logger,
	)
}

func (f *pipelineFixture) seedRequest(t *testing.T) *models.PurchaseRequest {
	t.Helper()
	req := &models.PurchaseRequest{
		Title:                  "Office laptops",
		AmountEstimated:        decimal.NewFromInt(900),
		CreatedBy:              "staff-1",
		CurrentApprovalLevel:   1,
		RequiredApprovalLevels: 2,
	}
	require.NoError(t, f.requestRepo.Create(nil, req))
	return req
}

func pdfUpload() Upload {
	return Upload{Filename: "proforma.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 test")}
}

func TestIngestProformaWithModelData(t *testing.T) {
	f := newPipelineFixture(t)
	f.structurer.data = models.DocumentData{
		VendorName:  "Acme Supplies Ltd",
		Currency:    "USD",
		TotalAmount: decimal.NewFromInt(1000),
		Items: []models.DocumentItem{
			{Name: "Laptop", Quantity: 2, UnitPrice: decimal.NewFromInt(500), TotalPrice: decimal.NewFromInt(1000)},
		},
	}
	req := f.seedRequest(t)

	result, err := f.pipeline(t).Ingest(context.Background(), req, models.DocTypeProforma, pdfUpload())
	require.NoError(t, err)

	assert.Equal(t, models.EngineModel, result.EngineUsed)
	assert.Equal(t, 0.9, result.ConfidenceScore)
	assert.Equal(t, "Acme Supplies Ltd", result.FinalData.VendorName)

	// The stored record carries the structured data in both slots; the
	// heuristic parse only reaches the structurer as a hint.
	assert.Equal(t, result.FinalData, result.BaselineData)
	assert.Equal(t, "Acme Supplies Ltd", f.structurer.lastBaseline.VendorName)

	// Proforma side effects are denormalized onto the request.
	stored, err := f.requestRepo.GetByID(nil, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Supplies Ltd", stored.VendorName)
	assert.Equal(t, "USD", stored.Currency)
	assert.True(t, stored.AmountFromProforma.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, result.DocumentURL, stored.ProformaURL)

	items, err := f.itemRepo.ListByRequest(req.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Laptop", items[0].Name)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestIngestFallsBackToBlankStructure(t *testing.T) {
	f := newPipelineFixture(t)
	req := f.seedRequest(t)

	result, err := f.pipeline(t).Ingest(context.Background(), req, models.DocTypeProforma, pdfUpload())
	require.NoError(t, err)

	assert.Equal(t, models.EngineOCROnly, result.EngineUsed)
	assert.Equal(t, 0.4, result.ConfidenceScore)
	assert.True(t, result.FinalData.IsEmpty())
	assert.NotNil(t, result.FinalData.Items)
	assert.True(t, result.BaselineData.IsEmpty())

	// Request fields stay untouched when the structure is blank.
	stored, err := f.requestRepo.GetByID(nil, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "", stored.VendorName)
	assert.True(t, stored.AmountFromProforma.IsZero())

	items, err := f.itemRepo.ListByRequest(req.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestIngestProformaReplacesItems(t *testing.T) {
	f := newPipelineFixture(t)
	req := f.seedRequest(t)
	require.NoError(t, f.itemRepo.ReplaceForRequest(nil, req.ID, []models.RequestItem{
		{Name: "Old item", Quantity: 5},
	}))

	f.structurer.data = models.DocumentData{
		VendorName: "Acme",
		Items: []models.DocumentItem{
			{Name: "New item A", Quantity: 1},
			{Name: "", Quantity: 0}, // defaults applied
		},
	}

	_, err := f.pipeline(t).Ingest(context.Background(), req, models.DocTypeProforma, pdfUpload())
	require.NoError(t, err)

	items, err := f.itemRepo.ListByRequest(req.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "New item A", items[0].Name)
	assert.Equal(t, "Item", items[1].Name)
	assert.Equal(t, 1, items[1].Quantity)
}

func TestIngestReceiptOnlySetsLocator(t *testing.T) {
	f := newPipelineFixture(t)
	f.structurer.data = models.DocumentData{
		VendorName:  "Someone Else Ltd",
		TotalAmount: decimal.NewFromInt(999),
	}
	req := f.seedRequest(t)

	result, err := f.pipeline(t).Ingest(context.Background(), req, models.DocTypeReceipt, Upload{
		Filename: "receipt.png", ContentType: "image/png", Data: []byte{0x89, 0x50, 0x4e, 0x47},
	})
	require.NoError(t, err)

	stored, err := f.requestRepo.GetByID(nil, req.ID)
	require.NoError(t, err)
	assert.Equal(t, result.DocumentURL, stored.ReceiptURL)

	// Receipt data never touches the commercial fields or items.
	assert.Equal(t, "", stored.VendorName)
	assert.True(t, stored.AmountFromProforma.IsZero())

	items, err := f.itemRepo.ListByRequest(req.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestIngestStorageFailureIsFatal(t *testing.T) {
	f := newPipelineFixture(t)
	f.blobStore.err = errors.New("disk full")
	req := f.seedRequest(t)

	_, err := f.pipeline(t).Ingest(context.Background(), req, models.DocTypeProforma, pdfUpload())

	var ee *ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "storage", ee.Stage)
}

func TestIngestRejectsInvalidUploads(t *testing.T) {
	f := newPipelineFixture(t)
	req := f.seedRequest(t)
	p := f.pipeline(t)

	tests := []struct {
		name   string
		upload Upload
	}{
		{name: "empty file", upload: Upload{Filename: "a.pdf"}},
		{name: "unsupported extension", upload: Upload{Filename: "a.docx", Data: []byte("x")}},
		{name: "oversized file", upload: Upload{Filename: "a.pdf", Data: make([]byte, MaxUploadSize+1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Ingest(context.Background(), req, models.DocTypeProforma, tt.upload)
			var ee *ExtractionError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, "input", ee.Stage)
		})
	}
}

func TestIngestStripsNULBytes(t *testing.T) {
	f := newPipelineFixture(t)
	f.tokenizer.text = "Acme\x00 Supplies\x00"
	req := f.seedRequest(t)

	result, err := f.pipeline(t).Ingest(context.Background(), req, models.DocTypeProforma, pdfUpload())
	require.NoError(t, err)
	assert.Equal(t, "Acme Supplies", result.RawText)
}
