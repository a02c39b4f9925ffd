package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/memoirhq/memoir-engine/pkg/database"
	"github.com/memoirhq/memoir-engine/pkg/models"
)

// RelationshipRepository provides data access for entity relationships.
type RelationshipRepository interface {
	// Upsert inserts the edge; a duplicate (entity1, entity2, type) tuple
	// is a no-op, not an error.
	Upsert(ctx context.Context, rel *models.EntityRelationship) error

	// ListForUser returns up to limit edges between the user's entities,
	// joined with endpoint names, most recent first.
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.RelationshipEdge, error)

	// ListForEntity returns every edge touching the entity, in either
	// direction, joined with endpoint names.
	ListForEntity(ctx context.Context, entityID uuid.UUID) ([]*models.RelationshipEdge, error)

	CountForUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type relationshipRepository struct {
	db *database.DB
}

// NewRelationshipRepository creates a new RelationshipRepository.
func NewRelationshipRepository(db *database.DB) RelationshipRepository {
	return &relationshipRepository{db: db}
}

var _ RelationshipRepository = (*relationshipRepository)(nil)

func (r *relationshipRepository) Upsert(ctx context.Context, rel *models.EntityRelationship) error {
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}

	query := `
		INSERT INTO memoir_entity_relationships (id, entity1_id, entity2_id, relationship_type, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity1_id, entity2_id, relationship_type) DO NOTHING`

	_, err := r.db.Exec(ctx, query,
		rel.ID, rel.Entity1ID, rel.Entity2ID, rel.RelationshipType, rel.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert relationship: %w", err)
	}

	return nil
}

const edgeSelect = `
	SELECT e1.name, e1.entity_type, e2.name, e2.entity_type, r.relationship_type, r.description
	FROM memoir_entity_relationships r
	JOIN memoir_entities e1 ON r.entity1_id = e1.id
	JOIN memoir_entities e2 ON r.entity2_id = e2.id`

func (r *relationshipRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.RelationshipEdge, error) {
	query := edgeSelect + `
	WHERE e1.user_id = $1
	ORDER BY r.created_at DESC
	LIMIT $2`

	return r.queryEdges(ctx, query, userID, limit)
}

func (r *relationshipRepository) ListForEntity(ctx context.Context, entityID uuid.UUID) ([]*models.RelationshipEdge, error) {
	query := edgeSelect + `
	WHERE r.entity1_id = $1 OR r.entity2_id = $1
	ORDER BY r.created_at DESC`

	return r.queryEdges(ctx, query, entityID)
}

func (r *relationshipRepository) CountForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM memoir_entity_relationships r
		JOIN memoir_entities e1 ON r.entity1_id = e1.id
		WHERE e1.user_id = $1`

	var count int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count relationships: %w", err)
	}

	return count, nil
}

func (r *relationshipRepository) queryEdges(ctx context.Context, query string, args ...any) ([]*models.RelationshipEdge, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var edges []*models.RelationshipEdge
	for rows.Next() {
		var e models.RelationshipEdge
		err := rows.Scan(
			&e.Entity1Name, &e.Entity1Type, &e.Entity2Name, &e.Entity2Type,
			&e.RelationshipType, &e.Description,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		edges = append(edges, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relationships: %w", err)
	}

	return edges, nil
}
