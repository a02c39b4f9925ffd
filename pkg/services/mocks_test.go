package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memoirhq/memoir-engine/pkg/apperrors"
	"github.com/memoirhq/memoir-engine/pkg/models"
)

// Mock implementations for testing

// mockEntityRepository is an in-memory EntityRepository keyed the same way
// the database deduplicates: (entity_type, normalized name).
type mockEntityRepository struct {
	entities map[string]*models.Entity
	mentions []*models.EntityMention

	upsertErrFor map[string]error // keyed by raw name
	mentionErr   error
}

func newMockEntityRepository() *mockEntityRepository {
	return &mockEntityRepository{
		entities:     make(map[string]*models.Entity),
		upsertErrFor: make(map[string]error),
	}
}

func entityKey(entityType models.EntityType, name string) string {
	return string(entityType) + "|" + models.NormalizeEntityName(name)
}

func (m *mockEntityRepository) Upsert(ctx context.Context, entity *models.Entity) error {
	if err := m.upsertErrFor[entity.Name]; err != nil {
		return err
	}

	key := entityKey(entity.EntityType, entity.Name)
	if existing, ok := m.entities[key]; ok {
		existing.MentionCount++
		existing.UpdatedAt = time.Now()
		entity.ID = existing.ID
		entity.MentionCount = existing.MentionCount
		return nil
	}

	entity.ID = uuid.New()
	entity.MentionCount = 1
	entity.CreatedAt = time.Now()
	entity.UpdatedAt = entity.CreatedAt
	stored := *entity
	m.entities[key] = &stored
	return nil
}

func (m *mockEntityRepository) RecordMention(ctx context.Context, mention *models.EntityMention) error {
	if m.mentionErr != nil {
		return m.mentionErr
	}
	mention.ID = uuid.New()
	m.mentions = append(m.mentions, mention)
	return nil
}

func (m *mockEntityRepository) GetByName(ctx context.Context, userID uuid.UUID, entityType models.EntityType, name string) (*models.Entity, error) {
	if entity, ok := m.entities[entityKey(entityType, name)]; ok {
		return entity, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockEntityRepository) FindByFuzzyName(ctx context.Context, userID uuid.UUID, name string) (*models.Entity, error) {
	nameKey := models.NormalizeEntityName(name)
	for _, entity := range m.entities {
		if models.NormalizeEntityName(entity.Name) == nameKey {
			return entity, nil
		}
	}
	for _, entity := range m.entities {
		if contains(models.NormalizeEntityName(entity.Name), nameKey) {
			return entity, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockEntityRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Entity, error) {
	var out []*models.Entity
	for _, entity := range m.entities {
		out = append(out, entity)
	}
	return out, nil
}

func (m *mockEntityRepository) ListByType(ctx context.Context, userID uuid.UUID, entityType models.EntityType) ([]*models.Entity, error) {
	var out []*models.Entity
	for _, entity := range m.entities {
		if entity.EntityType == entityType {
			out = append(out, entity)
		}
	}
	return out, nil
}

func (m *mockEntityRepository) TopByType(ctx context.Context, userID uuid.UUID, entityType models.EntityType, limit int) ([]*models.Entity, error) {
	entities, _ := m.ListByType(ctx, userID, entityType)
	if len(entities) > limit {
		entities = entities[:limit]
	}
	return entities, nil
}

func (m *mockEntityRepository) CountsByType(ctx context.Context, userID uuid.UUID) (map[models.EntityType]int, error) {
	counts := make(map[models.EntityType]int)
	for _, entity := range m.entities {
		counts[entity.EntityType]++
	}
	return counts, nil
}

func (m *mockEntityRepository) RecentMentions(ctx context.Context, entityID uuid.UUID, limit int) ([]*models.EntityMention, error) {
	var out []*models.EntityMention
	for _, mention := range m.mentions {
		if mention.EntityID == entityID {
			out = append(out, mention)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func contains(haystack, needle string) bool {
	return needle != "" && strings.Contains(haystack, needle)
}

// mockRelationshipRepository is an in-memory RelationshipRepository.
type mockRelationshipRepository struct {
	rels      []*models.EntityRelationship
	edges     []*models.RelationshipEdge // canned edge views for list calls
	upsertErr error
}

func (m *mockRelationshipRepository) Upsert(ctx context.Context, rel *models.EntityRelationship) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, existing := range m.rels {
		if existing.Entity1ID == rel.Entity1ID && existing.Entity2ID == rel.Entity2ID &&
			existing.RelationshipType == rel.RelationshipType {
			return nil
		}
	}
	rel.ID = uuid.New()
	m.rels = append(m.rels, rel)
	return nil
}

func (m *mockRelationshipRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.RelationshipEdge, error) {
	edges := m.edges
	if len(edges) > limit {
		edges = edges[:limit]
	}
	return edges, nil
}

func (m *mockRelationshipRepository) ListForEntity(ctx context.Context, entityID uuid.UUID) ([]*models.RelationshipEdge, error) {
	return m.edges, nil
}

func (m *mockRelationshipRepository) CountForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	if len(m.edges) > 0 {
		return len(m.edges), nil
	}
	return len(m.rels), nil
}
