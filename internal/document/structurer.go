package document

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/gathara/procure-to-pay/internal/models"
)

// Structurer turns OCR text into structured document data, and produces an
// advisory comparison narrative between two documents. Both operations
// degrade to an empty result instead of surfacing errors: model failures
// must never make ingestion or validation fail.
type Structurer interface {
	Structure(ctx context.Context, rawText, docType string, baseline models.DocumentData) models.DocumentData
	Compare(ctx context.Context, poData, receiptData models.DocumentData) json.RawMessage
}

const structuringPrompt = `You are an intelligent document parser for a procure-to-pay platform.
Given OCR text from financial documents (proforma, receipt, or purchase order),
produce structured JSON with the following schema:
{
  "vendor_name": "<string>",
  "currency": "<string>",
  "document_date": "<YYYY-MM-DD or empty string>",
  "total_amount": <number>,
  "items": [
     {
        "name": "<string>",
        "description": "<string>",
        "quantity": <number>,
        "unit_price": <number>,
        "total_price": <number>
     }
  ],
  "terms": "<string>"
}
Rules:
- If a field isn't present, leave it as an empty string or 0 (do not invent values).
- Items array can be empty if no line items are discoverable.
- Only return valid JSON. Do not include explanations.`

// OpenAIStructurer implements Structurer against the chat completion API
// in JSON mode.
type OpenAIStructurer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIStructurer creates a structurer. client may be nil, in which
// case every call returns the empty result.
func NewOpenAIStructurer(client *openai.Client, model string, logger *zap.Logger) *OpenAIStructurer {
	return &OpenAIStructurer{client: client, model: model, logger: logger}
}

// Structure parses rawText into the canonical schema. baseline is the
// heuristic regex parse, offered to the model as a hint it may correct.
// Any failure, empty response, or non-JSON response yields an empty
// DocumentData.
func (s *OpenAIStructurer) Structure(ctx context.Context, rawText, docType string, baseline models.DocumentData) models.DocumentData {
	if s.client == nil {
		s.logger.Warn("Structuring model unavailable; returning empty structure")
		return models.DocumentData{}
	}
	if rawText == "" {
		return models.DocumentData{}
	}

	prompt := fmt.Sprintf(
		"Document type: %s.\nExtract the data using the schema described in the system prompt from the following text:\n```%s```",
		docType, rawText,
	)
	if !baseline.IsEmpty() {
		if hint, err := json.Marshal(baseline); err == nil {
			prompt += fmt.Sprintf(
				"\nA regex-based pre-parse produced the following candidate values. Use them only where the text confirms them:\n```%s```",
				hint,
			)
		}
	}
	content := s.complete(ctx, structuringPrompt, prompt)
	if content == "" {
		s.logger.Warn("Structuring model returned empty content", zap.String("doc_type", docType))
		return models.DocumentData{}
	}

	var data models.DocumentData
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		s.logger.Warn("Structuring model response was not valid JSON",
			zap.String("doc_type", docType),
			zap.Error(err))
		return models.DocumentData{}
	}
	return data
}

// Compare asks the model for a narrative comparison of a purchase order
// and a receipt. The result is advisory only; failures yield nil.
func (s *OpenAIStructurer) Compare(ctx context.Context, poData, receiptData models.DocumentData) json.RawMessage {
	if s.client == nil {
		return nil
	}

	poJSON, err := json.Marshal(poData)
	if err != nil {
		return nil
	}
	receiptJSON, err := json.Marshal(receiptData)
	if err != nil {
		return nil
	}

	prompt := fmt.Sprintf(
		"You are comparing a purchase order against a receipt. "+
			"Identify matches and mismatches across vendor, totals, and items. "+
			"Respond in JSON with: {\"summary\": \"...\", \"issues\": [\"...\"], \"confidence\": 0-1}.\n"+
			"Purchase Order JSON:\n```%s```\nReceipt JSON:\n```%s```",
		poJSON, receiptJSON,
	)
	content := s.complete(ctx, "You are a careful financial document auditor. Only return valid JSON.", prompt)
	if content == "" {
		return nil
	}
	if !json.Valid([]byte(content)) {
		s.logger.Warn("Comparison summary was not valid JSON")
		return nil
	}
	return json.RawMessage(content)
}

func (s *OpenAIStructurer) complete(ctx context.Context, system, user string) string {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		s.logger.Warn("Model call failed", zap.Error(err))
		return ""
	}
	if len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}
