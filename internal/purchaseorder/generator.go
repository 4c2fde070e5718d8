// Package purchaseorder materializes the purchase order artifact for an
// approved request.
package purchaseorder

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/models"
	"github.com/gathara/procure-to-pay/internal/repository"
	"github.com/gathara/procure-to-pay/internal/storage"
)

const defaultTerms = "Payment within 30 days"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Generator creates purchase orders from a request's proforma extraction.
// Ensure is idempotent and must run inside the caller's transaction so a
// request is never observably approved without its purchase order.
type Generator struct {
	poRepo         *repository.PurchaseOrderRepository
	extractionRepo *repository.ExtractionRepository
	blobStore      storage.BlobStore
	logger         *zap.Logger
}

// NewGenerator creates a purchase order generator.
func NewGenerator(
	poRepo *repository.PurchaseOrderRepository,
	extractionRepo *repository.ExtractionRepository,
	blobStore storage.BlobStore,
	logger *zap.Logger,
) *Generator {
	return &Generator{
		poRepo:         poRepo,
		extractionRepo: extractionRepo,
		blobStore:      blobStore,
		logger:         logger,
	}
}

// Ensure returns the request's purchase order, creating it when it does
// not exist yet. An existing order is returned unchanged; regeneration
// never happens. On creation the request's PurchaseOrderURL field is set;
// persisting it is the caller's job within the same transaction.
func (g *Generator) Ensure(tx *sql.Tx, req *models.PurchaseRequest) (*models.PurchaseOrder, error) {
	existing, err := g.poRepo.GetByRequestID(tx, req.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		req.PurchaseOrderURL = existing.DocumentURL
		return existing, nil
	}

	structured, err := g.structuredData(tx, req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	poNumber := models.NewPONumber(now)

	artifact, err := renderArtifact(poNumber, req, structured, now)
	if err != nil {
		return nil, fmt.Errorf("failed to render purchase order: %w", err)
	}
	locator, err := g.blobStore.Upload(artifact, "purchase_orders", poNumber+".xlsx", xlsxContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store purchase order artifact: %w", err)
	}

	po := &models.PurchaseOrder{
		RequestID:      req.ID,
		PONumber:       poNumber,
		VendorName:     structured.VendorName,
		Currency:       structured.Currency,
		IssueDate:      now,
		TotalAmount:    structured.TotalAmount,
		Terms:          structured.Terms,
		DocumentURL:    locator,
		StructuredData: structured,
	}
	if err := g.poRepo.Create(tx, po); err != nil {
		return nil, err
	}

	// Record the generated document in the per-request extraction log so
	// all three document types appear there.
	record := &models.ExtractionResult{
		RequestID:       req.ID,
		DocType:         models.DocTypePO,
		DocumentURL:     locator,
		RawText:         "Generated internally",
		BaselineData:    structured,
		FinalData:       structured,
		EngineUsed:      models.EngineGenerator,
		ConfidenceScore: 1.0,
	}
	if err := g.extractionRepo.Create(tx, record); err != nil {
		return nil, err
	}

	req.PurchaseOrderURL = locator

	g.logger.Info("Purchase order generated",
		zap.String("request_id", req.ID),
		zap.String("po_number", poNumber),
		zap.String("total", po.TotalAmount.String()))

	return po, nil
}

// structuredData assembles the order's structured data from the latest
// proforma extraction, falling back to the request's own fields and a
// single synthetic line item when nothing was parsed.
func (g *Generator) structuredData(tx *sql.Tx, req *models.PurchaseRequest) (models.DocumentData, error) {
	extraction, err := g.extractionRepo.GetLatestByType(tx, req.ID, models.DocTypeProforma)
	if err != nil {
		return models.DocumentData{}, err
	}

	data := models.DocumentData{Terms: defaultTerms}

	data.VendorName = req.VendorName
	if data.VendorName == "" && extraction != nil {
		data.VendorName = extraction.FinalData.VendorName
	}

	data.Currency = req.Currency
	if data.Currency == "" && extraction != nil {
		data.Currency = extraction.FinalData.Currency
	}
	if data.Currency == "" {
		data.Currency = "USD"
	}

	data.TotalAmount = req.AmountFromProforma
	if data.TotalAmount.IsZero() {
		data.TotalAmount = req.AmountEstimated
	}

	if extraction != nil {
		data.Items = extraction.FinalData.Items
	}
	if len(data.Items) == 0 {
		data.Items = []models.DocumentItem{{
			Name:        req.Title,
			Description: req.Description,
			Quantity:    1,
			UnitPrice:   req.AmountEstimated,
			TotalPrice:  req.AmountEstimated,
		}}
	}

	if data.TotalAmount.LessThan(decimal.Zero) {
		data.TotalAmount = decimal.Zero
	}
	return data, nil
}
