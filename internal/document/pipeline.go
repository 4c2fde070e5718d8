package document

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/models"
	"github.com/gathara/procure-to-pay/internal/repository"
	"github.com/gathara/procure-to-pay/internal/storage"
	"github.com/gathara/procure-to-pay/pkg/database"
)

// Confidence scores are coarse labels for which path produced the final
// data, not a measure of data quality.
const (
	confidenceModel    = 0.9
	confidenceFallback = 0.4
)

// Pipeline turns one uploaded file into a persisted, structured extraction
// record and denormalizes proforma data onto the parent request.
type Pipeline struct {
	db             *database.DB
	blobStore      storage.BlobStore
	tokenizer      OCRTokenizer
	structurer     Structurer
	extractionRepo *repository.ExtractionRepository
	requestRepo    *repository.RequestRepository
	itemRepo       *repository.RequestItemRepository
	modelTimeout   time.Duration
	logger         *zap.Logger
}

// NewPipeline creates a document ingestion pipeline.
func NewPipeline(
	db *database.DB,
	blobStore storage.BlobStore,
	tokenizer OCRTokenizer,
	structurer Structurer,
	extractionRepo *repository.ExtractionRepository,
	requestRepo *repository.RequestRepository,
	itemRepo *repository.RequestItemRepository,
	modelTimeout time.Duration,
	logger *zap.Logger,
) *Pipeline {
	if modelTimeout <= 0 {
		modelTimeout = 60 * time.Second
	}
	return &Pipeline{
		db:             db,
		blobStore:      blobStore,
		tokenizer:      tokenizer,
		structurer:     structurer,
		extractionRepo: extractionRepo,
		requestRepo:    requestRepo,
		itemRepo:       itemRepo,
		modelTimeout:   modelTimeout,
		logger:         logger,
	}
}

// Ingest stores the raw file, extracts and structures its text, persists
// an extraction record, and applies proforma side effects to the request.
// Storage and OCR failures are fatal; structuring failures degrade to the
// blank structure. Each call appends a new record, even for a document
// that was ingested before.
func (p *Pipeline) Ingest(ctx context.Context, req *models.PurchaseRequest, docType string, upload Upload) (*models.ExtractionResult, error) {
	if err := upload.Validate(); err != nil {
		return nil, &ExtractionError{Stage: "input", Err: err}
	}

	locator, err := p.blobStore.Upload(upload.Data, "documents/"+docType, upload.Filename, upload.ContentType)
	if err != nil {
		return nil, &ExtractionError{Stage: "storage", Err: err}
	}

	rawText, _, err := p.tokenizer.Extract(ctx, upload)
	if err != nil {
		return nil, err
	}
	rawText = strings.ReplaceAll(rawText, "\x00", "")

	baseline := ParseFields(rawText)

	modelCtx, cancel := context.WithTimeout(ctx, p.modelTimeout)
	structured := p.structurer.Structure(modelCtx, rawText, docType, baseline)
	cancel()

	engine := models.EngineModel
	confidence := confidenceModel
	finalData := structured
	if structured.IsEmpty() {
		p.logger.Warn("Structuring returned empty payload, falling back to blank structure",
			zap.String("request_id", req.ID),
			zap.String("doc_type", docType))
		finalData = models.BlankDocumentData()
		engine = models.EngineOCROnly
		confidence = confidenceFallback
	}
	if finalData.Items == nil {
		finalData.Items = []models.DocumentItem{}
	}

	result := &models.ExtractionResult{
		RequestID:       req.ID,
		DocType:         docType,
		DocumentURL:     locator,
		RawText:         rawText,
		BaselineData:    finalData,
		FinalData:       finalData,
		EngineUsed:      engine,
		ConfidenceScore: confidence,
	}

	err = p.db.WithTransaction(func(tx *sql.Tx) error {
		if err := p.extractionRepo.Create(tx, result); err != nil {
			return err
		}
		switch docType {
		case models.DocTypeProforma:
			req.ProformaURL = locator
			p.applyProformaData(req, finalData)
			if err := p.requestRepo.UpdateCommercialFields(tx, req); err != nil {
				return err
			}
			if len(finalData.Items) > 0 {
				items := make([]models.RequestItem, 0, len(finalData.Items))
				for _, item := range finalData.Items {
					items = append(items, requestItemFrom(item))
				}
				if err := p.itemRepo.ReplaceForRequest(tx, req.ID, items); err != nil {
					return err
				}
			}
		case models.DocTypeReceipt:
			req.ReceiptURL = locator
			if err := p.requestRepo.UpdateCommercialFields(tx, req); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist extraction: %w", err)
	}

	p.logger.Info("Document ingested",
		zap.String("request_id", req.ID),
		zap.String("doc_type", docType),
		zap.String("engine", engine),
		zap.Float64("confidence", confidence))

	return result, nil
}

// applyProformaData overwrites request fields from the structured result.
// Only non-empty values overwrite; absent fields leave the request alone.
func (p *Pipeline) applyProformaData(req *models.PurchaseRequest, data models.DocumentData) {
	if data.VendorName != "" {
		req.VendorName = data.VendorName
	}
	if data.Currency != "" {
		req.Currency = data.Currency
	}
	if !data.TotalAmount.IsZero() {
		req.AmountFromProforma = data.TotalAmount
	}
}

func requestItemFrom(item models.DocumentItem) models.RequestItem {
	name := item.Name
	if name == "" {
		name = "Item"
	}
	quantity := item.Quantity
	if quantity == 0 {
		quantity = 1
	}
	return models.RequestItem{
		Name:        name,
		Description: item.Description,
		Quantity:    quantity,
		UnitPrice:   item.UnitPrice,
		TotalPrice:  item.TotalPrice,
	}
}
