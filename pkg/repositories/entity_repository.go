// Package repositories provides Postgres data access for the memory graph.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/memoirhq/memoir-engine/pkg/apperrors"
	"github.com/memoirhq/memoir-engine/pkg/database"
	"github.com/memoirhq/memoir-engine/pkg/models"
)

// EntityRepository provides data access for entities and their mentions.
type EntityRepository interface {
	// Upsert inserts the entity or, when the (user, type, normalized name)
	// key already exists, increments mention_count and touches updated_at.
	// Either way the entity's ID and counters are populated on return.
	// The upsert is a single atomic statement, safe under concurrent
	// extraction runs racing to create the same new entity.
	Upsert(ctx context.Context, entity *models.Entity) error

	// RecordMention appends a mention row. Mentions are never deduplicated.
	RecordMention(ctx context.Context, mention *models.EntityMention) error

	GetByName(ctx context.Context, userID uuid.UUID, entityType models.EntityType, name string) (*models.Entity, error)
	FindByFuzzyName(ctx context.Context, userID uuid.UUID, name string) (*models.Entity, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Entity, error)
	ListByType(ctx context.Context, userID uuid.UUID, entityType models.EntityType) ([]*models.Entity, error)
	TopByType(ctx context.Context, userID uuid.UUID, entityType models.EntityType, limit int) ([]*models.Entity, error)
	CountsByType(ctx context.Context, userID uuid.UUID) (map[models.EntityType]int, error)
	RecentMentions(ctx context.Context, entityID uuid.UUID, limit int) ([]*models.EntityMention, error)
}

type entityRepository struct {
	db *database.DB
}

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(db *database.DB) EntityRepository {
	return &entityRepository{db: db}
}

var _ EntityRepository = (*entityRepository)(nil)

const entityColumns = `id, user_id, entity_type, name, description, mention_count,
	first_mentioned_chapter, first_mentioned_question, created_at, updated_at`

func (r *entityRepository) Upsert(ctx context.Context, entity *models.Entity) error {
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}

	query := `
		INSERT INTO memoir_entities (
			id, user_id, entity_type, name, name_key, description,
			first_mentioned_chapter, first_mentioned_question
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, entity_type, name_key)
		DO UPDATE SET
			mention_count = memoir_entities.mention_count + 1,
			updated_at = now()
		RETURNING id, mention_count, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		entity.ID, entity.UserID, entity.EntityType, entity.Name,
		models.NormalizeEntityName(entity.Name), entity.Description,
		entity.FirstMentionedChapter, entity.FirstMentionedQuestion,
	).Scan(&entity.ID, &entity.MentionCount, &entity.CreatedAt, &entity.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert entity: %w", err)
	}

	return nil
}

func (r *entityRepository) RecordMention(ctx context.Context, mention *models.EntityMention) error {
	if mention.ID == uuid.Nil {
		mention.ID = uuid.New()
	}
	mention.Sentiment = models.NormalizeSentiment(mention.Sentiment)

	query := `
		INSERT INTO memoir_entity_mentions (id, entity_id, story_id, context, sentiment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		mention.ID, mention.EntityID, mention.StoryID, mention.Context, mention.Sentiment,
	).Scan(&mention.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record mention: %w", err)
	}

	return nil
}

func (r *entityRepository) GetByName(ctx context.Context, userID uuid.UUID, entityType models.EntityType, name string) (*models.Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM memoir_entities
		WHERE user_id = $1 AND entity_type = $2 AND name_key = $3`

	row := r.db.QueryRow(ctx, query, userID, entityType, models.NormalizeEntityName(name))
	entity, err := scanEntity(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return entity, nil
}

// FindByFuzzyName resolves a name to the most-mentioned entity whose name key
// exactly matches, or failing that, contains the normalized input.
func (r *entityRepository) FindByFuzzyName(ctx context.Context, userID uuid.UUID, name string) (*models.Entity, error) {
	key := models.NormalizeEntityName(name)
	if key == "" {
		return nil, apperrors.ErrNotFound
	}

	query := `
		SELECT ` + entityColumns + `
		FROM memoir_entities
		WHERE user_id = $1 AND name_key LIKE '%' || $2 || '%'
		ORDER BY (name_key = $2) DESC, mention_count DESC
		LIMIT 1`

	row := r.db.QueryRow(ctx, query, userID, key)
	entity, err := scanEntity(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return entity, nil
}

func (r *entityRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM memoir_entities
		WHERE user_id = $1
		ORDER BY mention_count DESC, updated_at DESC`

	return r.queryEntities(ctx, query, userID)
}

func (r *entityRepository) ListByType(ctx context.Context, userID uuid.UUID, entityType models.EntityType) ([]*models.Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM memoir_entities
		WHERE user_id = $1 AND entity_type = $2
		ORDER BY mention_count DESC, updated_at DESC`

	return r.queryEntities(ctx, query, userID, entityType)
}

func (r *entityRepository) TopByType(ctx context.Context, userID uuid.UUID, entityType models.EntityType, limit int) ([]*models.Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM memoir_entities
		WHERE user_id = $1 AND entity_type = $2
		ORDER BY mention_count DESC, updated_at DESC
		LIMIT $3`

	return r.queryEntities(ctx, query, userID, entityType, limit)
}

func (r *entityRepository) CountsByType(ctx context.Context, userID uuid.UUID) (map[models.EntityType]int, error) {
	query := `
		SELECT entity_type, COUNT(*)
		FROM memoir_entities
		WHERE user_id = $1
		GROUP BY entity_type`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.EntityType]int)
	for rows.Next() {
		var entityType models.EntityType
		var count int
		if err := rows.Scan(&entityType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan entity count: %w", err)
		}
		counts[entityType] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entity counts: %w", err)
	}

	return counts, nil
}

func (r *entityRepository) RecentMentions(ctx context.Context, entityID uuid.UUID, limit int) ([]*models.EntityMention, error) {
	query := `
		SELECT id, entity_id, story_id, context, sentiment, created_at
		FROM memoir_entity_mentions
		WHERE entity_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query mentions: %w", err)
	}
	defer rows.Close()

	var mentions []*models.EntityMention
	for rows.Next() {
		var m models.EntityMention
		if err := rows.Scan(&m.ID, &m.EntityID, &m.StoryID, &m.Context, &m.Sentiment, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mention: %w", err)
		}
		mentions = append(mentions, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mentions: %w", err)
	}

	return mentions, nil
}

func (r *entityRepository) queryEntities(ctx context.Context, query string, args ...any) ([]*models.Entity, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []*models.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}

	return entities, nil
}

func scanEntity(row pgx.Row) (*models.Entity, error) {
	var e models.Entity
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&e.ID, &e.UserID, &e.EntityType, &e.Name, &e.Description, &e.MentionCount,
		&e.FirstMentionedChapter, &e.FirstMentionedQuestion, &createdAt, &updatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}

	e.CreatedAt = createdAt
	e.UpdatedAt = updatedAt
	return &e, nil
}
