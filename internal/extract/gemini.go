package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/expenses-ingest/internal/schema"
)

// Gemini is the Extractor implementation backed by the Gemini API.
// The client is created once at startup and shared across requests; models
// is a priority-ordered fallback list resolved once from configuration.
type Gemini struct {
	client *genai.Client
	models []string
	log    zerolog.Logger
}

// NewGemini wraps an existing genai client. models must contain at least one
// model name; earlier entries are preferred.
func NewGemini(client *genai.Client, models []string, log zerolog.Logger) (*Gemini, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("NewGemini: at least one model name is required")
	}
	return &Gemini{client: client, models: models, log: log}, nil
}

// ExtractText implements Extractor.
func (g *Gemini) ExtractText(ctx context.Context, text string) schema.ExtractedFields {
	parts := []*genai.Part{{Text: textPrompt + text}}
	return g.generate(ctx, parts)
}

// ExtractReceipt implements Extractor.
func (g *Gemini) ExtractReceipt(ctx context.Context, assetURI, mimeType string) schema.ExtractedFields {
	parts := []*genai.Part{
		{Text: receiptPrompt},
		{FileData: &genai.FileData{FileURI: assetURI, MIMEType: mimeType}},
	}
	return g.generate(ctx, parts)
}

// generate runs the model call, trying each configured model in priority
// order. It never returns an error: when every model fails the result is an
// empty field set carrying the last failure as a diagnostic.
func (g *Gemini) generate(ctx context.Context, parts []*genai.Part) schema.ExtractedFields {
	contents := []*genai.Content{{Role: "user", Parts: parts}}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   expenseSchema,
	}

	var lastErr error
	for _, model := range g.models {
		resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
		if err != nil {
			lastErr = fmt.Errorf("generate content (%s): %w", model, err)
			g.log.Warn().Err(err).Str("model", model).Msg("Extraction call failed")
			continue
		}

		rawText := resp.Text()
		if rawText == "" {
			lastErr = fmt.Errorf("empty response from model %s", model)
			g.log.Warn().Str("model", model).Msg("Empty extraction response")
			continue
		}

		fields, err := parseModelJSON(rawText)
		if err != nil {
			lastErr = fmt.Errorf("model %s: %w", model, err)
			g.log.Warn().Err(err).Str("model", model).Msg("Unparseable extraction response")
			continue
		}
		return fields
	}

	g.log.Error().Err(lastErr).Msg("Extraction degraded to empty result")
	return schema.ExtractedFields{Diagnostic: lastErr.Error()}
}

// parseModelJSON decodes the model's raw text into extracted fields,
// stripping any markdown fencing the model added despite instructions.
func parseModelJSON(raw string) (schema.ExtractedFields, error) {
	clean := cleanModelJSON(raw)

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return schema.ExtractedFields{}, fmt.Errorf("unmarshal model JSON: %w", err)
	}

	return FieldsFromRaw(parsed), nil
}

// cleanModelJSON strips markdown fences and surrounding junk, keeping only
// the outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// If there is still junk around the object, keep only from the first
	// '{' to the last '}'.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

var _ Extractor = (*Gemini)(nil)
