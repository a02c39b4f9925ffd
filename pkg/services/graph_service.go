package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memoirhq/memoir-engine/pkg/apperrors"
	"github.com/memoirhq/memoir-engine/pkg/models"
	"github.com/memoirhq/memoir-engine/pkg/repositories"
)

// CommitStats summarizes one committed extraction batch.
type CommitStats struct {
	Entities      []*models.Entity
	Relationships int
	Failures      int
}

// Connections is the 1-hop neighborhood of a fuzzy-matched entity.
type Connections struct {
	Found         bool                       `json:"found"`
	Entity        *models.Entity             `json:"entity,omitempty"`
	Relationships []*models.RelationshipEdge `json:"relationships,omitempty"`
	Mentions      []*models.EntityMention    `json:"mentions,omitempty"`
}

// GraphService merges extraction results into the per-user knowledge graph.
type GraphService interface {
	// CommitExtraction upserts all entities across the five categories
	// first (recording a mention alongside each), then links
	// relationships, so that edges between entities of the same batch
	// resolve. Every item write is isolated: a single failure loses only
	// that item, never its siblings.
	CommitExtraction(ctx context.Context, userID uuid.UUID, result *models.ExtractionResult, chapterID, questionID, storyID *uuid.UUID) *CommitStats

	// LinkRelationship resolves both endpoint names to existing entities
	// and idempotently upserts the edge. An unresolvable endpoint makes
	// the call a silent no-op: cross-batch edges whose counterpart was
	// never extracted are dropped, a documented gap.
	LinkRelationship(ctx context.Context, userID uuid.UUID, name1, name2, relType, description string) (bool, error)

	// ConnectionsFor fuzzy-matches a name against the user's entities and
	// returns the entity with its relationships and recent mentions.
	ConnectionsFor(ctx context.Context, userID uuid.UUID, name string) (*Connections, error)
}

type graphService struct {
	entityRepo       repositories.EntityRepository
	relationshipRepo repositories.RelationshipRepository
	logger           *zap.Logger
}

// NewGraphService creates a new graph service.
func NewGraphService(
	entityRepo repositories.EntityRepository,
	relationshipRepo repositories.RelationshipRepository,
	logger *zap.Logger,
) GraphService {
	return &graphService{
		entityRepo:       entityRepo,
		relationshipRepo: relationshipRepo,
		logger:           logger.Named("graph"),
	}
}

var _ GraphService = (*graphService)(nil)

func (s *graphService) CommitExtraction(ctx context.Context, userID uuid.UUID, result *models.ExtractionResult, chapterID, questionID, storyID *uuid.UUID) *CommitStats {
	stats := &CommitStats{}

	// Pass one: establish every node before any edge is attempted, so
	// relationships between entities extracted together can resolve.
	for _, group := range result.ByType() {
		for _, extracted := range group.Entities {
			entity := &models.Entity{
				UserID:                 userID,
				EntityType:             group.Type,
				Name:                   extracted.Name,
				Description:            extracted.Context,
				FirstMentionedChapter:  chapterID,
				FirstMentionedQuestion: questionID,
			}

			if err := s.entityRepo.Upsert(ctx, entity); err != nil {
				stats.Failures++
				s.logger.Warn("Entity upsert failed",
					zap.String("entity_type", string(group.Type)),
					zap.String("name", extracted.Name),
					zap.Error(err))
				continue
			}
			stats.Entities = append(stats.Entities, entity)

			mention := &models.EntityMention{
				EntityID:  entity.ID,
				StoryID:   storyID,
				Context:   extracted.Context,
				Sentiment: extracted.Sentiment,
			}
			if err := s.entityRepo.RecordMention(ctx, mention); err != nil {
				stats.Failures++
				s.logger.Warn("Mention insert failed",
					zap.String("entity_id", entity.ID.String()),
					zap.Error(err))
			}
		}
	}

	// Pass two: edges, only after the whole batch of nodes is committed.
	for _, rel := range result.Relationships {
		linked, err := s.LinkRelationship(ctx, userID, rel.Entity1, rel.Entity2, rel.Type, rel.Description)
		if err != nil {
			stats.Failures++
			s.logger.Warn("Relationship link failed",
				zap.String("entity1", rel.Entity1),
				zap.String("entity2", rel.Entity2),
				zap.Error(err))
			continue
		}
		if linked {
			stats.Relationships++
		}
	}

	return stats
}

func (s *graphService) LinkRelationship(ctx context.Context, userID uuid.UUID, name1, name2, relType, description string) (bool, error) {
	entity1, err := s.resolveByName(ctx, userID, name1)
	if err != nil {
		return false, err
	}
	entity2, err := s.resolveByName(ctx, userID, name2)
	if err != nil {
		return false, err
	}
	if entity1 == nil || entity2 == nil {
		// Unresolvable endpoint: silent no-op by design.
		s.logger.Debug("Relationship endpoint unresolved, dropping edge",
			zap.String("entity1", name1),
			zap.String("entity2", name2),
			zap.String("type", relType))
		return false, nil
	}

	rel := &models.EntityRelationship{
		Entity1ID:        entity1.ID,
		Entity2ID:        entity2.ID,
		RelationshipType: relType,
		Description:      description,
	}
	if err := s.relationshipRepo.Upsert(ctx, rel); err != nil {
		return false, err
	}

	return true, nil
}

// resolveByName finds an entity of any type whose normalized name matches.
// Returns (nil, nil) when nothing matches.
func (s *graphService) resolveByName(ctx context.Context, userID uuid.UUID, name string) (*models.Entity, error) {
	for _, entityType := range models.AllEntityTypes {
		entity, err := s.entityRepo.GetByName(ctx, userID, entityType, name)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return nil, err
		}
		return entity, nil
	}
	return nil, nil
}

func (s *graphService) ConnectionsFor(ctx context.Context, userID uuid.UUID, name string) (*Connections, error) {
	entity, err := s.entityRepo.FindByFuzzyName(ctx, userID, name)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return &Connections{Found: false}, nil
		}
		return nil, err
	}

	relationships, err := s.relationshipRepo.ListForEntity(ctx, entity.ID)
	if err != nil {
		return nil, err
	}

	mentions, err := s.entityRepo.RecentMentions(ctx, entity.ID, 10)
	if err != nil {
		return nil, err
	}

	return &Connections{
		Found:         true,
		Entity:        entity,
		Relationships: relationships,
		Mentions:      mentions,
	}, nil
}
