// Package services contains the knowledge-graph extraction pipeline.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/memoirhq/memoir-engine/pkg/apperrors"
	"github.com/memoirhq/memoir-engine/pkg/config"
	"github.com/memoirhq/memoir-engine/pkg/llm"
	"github.com/memoirhq/memoir-engine/pkg/models"
	"github.com/memoirhq/memoir-engine/pkg/prompts"
)

// ExtractionService formats extraction requests, calls the remote generation
// service, and tolerantly parses structured results out of free-text output.
type ExtractionService interface {
	// Extract runs one extraction over already-sanitized narrative text.
	// A remote-service failure is returned as an error; an unparseable
	// response degrades to the all-empty result with a nil error. Calling
	// without a configured provider returns apperrors.ErrNotConfigured;
	// callers gate on Eligible to avoid it.
	Extract(ctx context.Context, sanitizedText string) (*models.ExtractionResult, error)

	// Eligible reports whether the raw text is worth an extraction call:
	// the remote service is configured and the text meets the length floor.
	Eligible(text string) bool

	// Sanitize prepares raw narrative text for prompt embedding.
	Sanitize(text string) string
}

type extractionService struct {
	client llm.LLMClient // nil when the remote service is unconfigured
	cfg    config.ExtractionConfig
	temp   float64
	logger *zap.Logger
}

// NewExtractionService creates a new extraction service. A nil client marks
// the remote service as unconfigured: nothing is Eligible, so the pipeline
// skips extraction entirely.
func NewExtractionService(client llm.LLMClient, cfg config.ExtractionConfig, temperature float64, logger *zap.Logger) ExtractionService {
	return &extractionService{
		client: client,
		cfg:    cfg,
		temp:   temperature,
		logger: logger.Named("extraction"),
	}
}

var _ ExtractionService = (*extractionService)(nil)

func (s *extractionService) Eligible(text string) bool {
	if s.client == nil {
		return false
	}
	return len(strings.TrimSpace(text)) >= s.cfg.MinTextLength
}

func (s *extractionService) Sanitize(text string) string {
	return prompts.Sanitize(text, s.cfg.MaxTextLength)
}

func (s *extractionService) Extract(ctx context.Context, sanitizedText string) (*models.ExtractionResult, error) {
	if s.client == nil {
		return nil, apperrors.ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	prompt := prompts.BuildExtractionPrompt(sanitizedText)

	response, err := s.client.GenerateResponse(ctx, prompt, prompts.ExtractionSystemMessage, s.temp)
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}

	result, err := llm.ParseJSONResponse[models.ExtractionResult](response)
	if err != nil {
		// Malformed output degrades to "nothing found"; the save path
		// that triggered extraction must never break on this.
		s.logger.Warn("Unparseable extraction response",
			zap.Int("response_len", len(response)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return models.EmptyExtractionResult(), nil
	}

	normalizeResult(&result)

	s.logger.Debug("Extraction completed",
		zap.Int("entities", result.TotalEntities()),
		zap.Int("relationships", len(result.Relationships)),
		zap.Duration("elapsed", time.Since(start)))

	return &result, nil
}

// normalizeResult replaces nil category slices with empty ones so callers
// never see a nil list, and drops entries with blank names.
func normalizeResult(r *models.ExtractionResult) {
	clean := func(in []models.ExtractedEntity) []models.ExtractedEntity {
		out := make([]models.ExtractedEntity, 0, len(in))
		for _, e := range in {
			if strings.TrimSpace(e.Name) == "" {
				continue
			}
			out = append(out, e)
		}
		return out
	}

	r.People = clean(r.People)
	r.Places = clean(r.Places)
	r.Events = clean(r.Events)
	r.TimePeriods = clean(r.TimePeriods)
	r.Emotions = clean(r.Emotions)

	rels := make([]models.ExtractedRelationship, 0, len(r.Relationships))
	for _, rel := range r.Relationships {
		if strings.TrimSpace(rel.Entity1) == "" || strings.TrimSpace(rel.Entity2) == "" ||
			strings.TrimSpace(rel.Type) == "" {
			continue
		}
		rels = append(rels, rel)
	}
	r.Relationships = rels
}
