package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/memoirhq/memoir-engine/pkg/apperrors"
	"github.com/memoirhq/memoir-engine/pkg/auth"
	"github.com/memoirhq/memoir-engine/pkg/models"
	"github.com/memoirhq/memoir-engine/pkg/services"
)

// Mock implementations for testing

type mockExtractionService struct {
	eligible   bool
	result     *models.ExtractionResult
	extractErr error

	lastSanitized string
}

func (m *mockExtractionService) Extract(ctx context.Context, sanitizedText string) (*models.ExtractionResult, error) {
	m.lastSanitized = sanitizedText
	if m.extractErr != nil {
		return nil, m.extractErr
	}
	if m.result != nil {
		return m.result, nil
	}
	return models.EmptyExtractionResult(), nil
}

func (m *mockExtractionService) Eligible(text string) bool { return m.eligible }

func (m *mockExtractionService) Sanitize(text string) string { return text }

type mockGraphService struct {
	stats       *services.CommitStats
	connections *services.Connections
	connErr     error
}

func (m *mockGraphService) CommitExtraction(ctx context.Context, userID uuid.UUID, result *models.ExtractionResult, chapterID, questionID, storyID *uuid.UUID) *services.CommitStats {
	if m.stats != nil {
		return m.stats
	}
	return &services.CommitStats{}
}

func (m *mockGraphService) LinkRelationship(ctx context.Context, userID uuid.UUID, name1, name2, relType, description string) (bool, error) {
	return false, nil
}

func (m *mockGraphService) ConnectionsFor(ctx context.Context, userID uuid.UUID, name string) (*services.Connections, error) {
	if m.connErr != nil {
		return nil, m.connErr
	}
	if m.connections != nil {
		return m.connections, nil
	}
	return &services.Connections{Found: false}, nil
}

type mockContextService struct {
	memoryContext *models.MemoryContext
	err           error
}

func (m *mockContextService) BuildContext(ctx context.Context, userID uuid.UUID) (*models.MemoryContext, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.memoryContext != nil {
		return m.memoryContext, nil
	}
	return &models.MemoryContext{}, nil
}

type mockEntityRepo struct {
	entities []*models.Entity
	err      error
}

func (m *mockEntityRepo) Upsert(ctx context.Context, entity *models.Entity) error { return m.err }

func (m *mockEntityRepo) RecordMention(ctx context.Context, mention *models.EntityMention) error {
	return m.err
}

func (m *mockEntityRepo) GetByName(ctx context.Context, userID uuid.UUID, entityType models.EntityType, name string) (*models.Entity, error) {
	return nil, apperrors.ErrNotFound
}

func (m *mockEntityRepo) FindByFuzzyName(ctx context.Context, userID uuid.UUID, name string) (*models.Entity, error) {
	return nil, apperrors.ErrNotFound
}

func (m *mockEntityRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Entity, error) {
	return m.entities, m.err
}

func (m *mockEntityRepo) ListByType(ctx context.Context, userID uuid.UUID, entityType models.EntityType) ([]*models.Entity, error) {
	var out []*models.Entity
	for _, entity := range m.entities {
		if entity.EntityType == entityType {
			out = append(out, entity)
		}
	}
	return out, m.err
}

func (m *mockEntityRepo) TopByType(ctx context.Context, userID uuid.UUID, entityType models.EntityType, limit int) ([]*models.Entity, error) {
	return m.entities, m.err
}

func (m *mockEntityRepo) CountsByType(ctx context.Context, userID uuid.UUID) (map[models.EntityType]int, error) {
	return map[models.EntityType]int{}, m.err
}

func (m *mockEntityRepo) RecentMentions(ctx context.Context, entityID uuid.UUID, limit int) ([]*models.EntityMention, error) {
	return nil, m.err
}

// authed stamps the request context with a user ID, as the auth middleware
// would after validating a token.
func authed(r *http.Request, userID uuid.UUID) *http.Request {
	return r.WithContext(auth.WithUserID(r.Context(), userID))
}
