package document

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/models"
)

// OCRTokenizer extracts raw text and positioned tokens from an uploaded
// document. It fails with an ExtractionError when no backend can handle
// the media type.
type OCRTokenizer interface {
	Extract(ctx context.Context, upload Upload) (string, []models.PositionedToken, error)
}

// Tokenizer reads PDF text layers with mupdf and falls back to a vision
// model transcription for image uploads.
type Tokenizer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewTokenizer creates a tokenizer. client may be nil, in which case image
// OCR is unavailable and image uploads fail.
func NewTokenizer(client *openai.Client, model string, logger *zap.Logger) *Tokenizer {
	return &Tokenizer{client: client, model: model, logger: logger}
}

// Extract returns the document's raw text and page-indexed tokens.
func (t *Tokenizer) Extract(ctx context.Context, upload Upload) (string, []models.PositionedToken, error) {
	if upload.IsPDF() {
		return t.extractPDF(upload)
	}
	return t.extractImage(ctx, upload)
}

// extractPDF pulls the embedded text layer out of each page.
func (t *Tokenizer) extractPDF(upload Upload) (string, []models.PositionedToken, error) {
	doc, err := fitz.NewFromMemory(upload.Data)
	if err != nil {
		return "", nil, &ExtractionError{Stage: "input", Err: fmt.Errorf("failed to open PDF: %w", err)}
	}
	defer doc.Close()

	var chunks []string
	var tokens []models.PositionedToken
	for page := 0; page < doc.NumPage(); page++ {
		text, err := doc.Text(page)
		if err != nil {
			t.logger.Warn("Failed to read PDF page text",
				zap.Int("page", page),
				zap.Error(err))
			continue
		}
		chunks = append(chunks, text)
		// Tokens carry page positions only; the text layer gives no
		// word-level boxes.
		for _, word := range strings.Fields(text) {
			tokens = append(tokens, models.PositionedToken{Text: word, Page: page + 1})
		}
	}

	return strings.TrimSpace(strings.Join(chunks, "\n")), tokens, nil
}

// extractImage transcribes an image upload with the vision model.
func (t *Tokenizer) extractImage(ctx context.Context, upload Upload) (string, []models.PositionedToken, error) {
	if t.client == nil {
		return "", nil, &ExtractionError{Stage: "ocr",
			Err: fmt.Errorf("no OCR backend available for %s", filepath.Ext(upload.Filename))}
	}

	mime := "image/jpeg"
	if strings.ToLower(filepath.Ext(upload.Filename)) == ".png" {
		mime = "image/png"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(upload.Data))

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       t.model,
		MaxTokens:   4096,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You transcribe scanned commercial documents. Return the document text exactly as printed, preserving line breaks. Do not add commentary.",
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Transcribe all text in this document image.",
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", nil, &ExtractionError{Stage: "ocr", Err: fmt.Errorf("vision transcription failed: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return "", nil, &ExtractionError{Stage: "ocr", Err: fmt.Errorf("empty vision response")}
	}

	text := resp.Choices[0].Message.Content
	var tokens []models.PositionedToken
	for _, word := range strings.Fields(text) {
		tokens = append(tokens, models.PositionedToken{Text: word, Page: 1})
	}
	return strings.TrimSpace(text), tokens, nil
}
