package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memoirhq/memoir-engine/pkg/models"
	"github.com/memoirhq/memoir-engine/pkg/repositories"
)

// Per-category caps on how many entities the context block may carry.
// People and places dominate memoir narratives and get the larger share.
const (
	topPeopleLimit     = 10
	topPlacesLimit     = 10
	topEventsLimit     = 5
	topTimePeriodLimit = 5
	topEmotionLimit    = 5
	relationshipLimit  = 20
)

var sectionTitles = map[models.EntityType]string{
	models.EntityTypePerson:     "People",
	models.EntityTypePlace:      "Places",
	models.EntityTypeEvent:      "Events",
	models.EntityTypeTimePeriod: "Time periods",
	models.EntityTypeEmotion:    "Emotions",
}

// ContextService assembles the bounded, ranked summary of a user's graph
// that downstream generation features splice into their prompts.
type ContextService interface {
	// BuildContext renders the labeled-section context block. The text is
	// capped at the configured character budget no matter how large the
	// graph is; stats always reflect the full graph. An empty graph
	// yields empty text and zeroed stats, never an error.
	BuildContext(ctx context.Context, userID uuid.UUID) (*models.MemoryContext, error)
}

type contextService struct {
	entityRepo       repositories.EntityRepository
	relationshipRepo repositories.RelationshipRepository
	budget           int
	logger           *zap.Logger
}

// NewContextService creates a new context service. budget caps the rendered
// text, in characters.
func NewContextService(
	entityRepo repositories.EntityRepository,
	relationshipRepo repositories.RelationshipRepository,
	budget int,
	logger *zap.Logger,
) ContextService {
	return &contextService{
		entityRepo:       entityRepo,
		relationshipRepo: relationshipRepo,
		budget:           budget,
		logger:           logger.Named("context"),
	}
}

var _ ContextService = (*contextService)(nil)

func (s *contextService) BuildContext(ctx context.Context, userID uuid.UUID) (*models.MemoryContext, error) {
	counts, err := s.entityRepo.CountsByType(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count entities: %w", err)
	}

	relationshipCount, err := s.relationshipRepo.CountForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count relationships: %w", err)
	}

	stats := models.ContextStats{
		People:        counts[models.EntityTypePerson],
		Places:        counts[models.EntityTypePlace],
		Events:        counts[models.EntityTypeEvent],
		TimePeriods:   counts[models.EntityTypeTimePeriod],
		Emotions:      counts[models.EntityTypeEmotion],
		Relationships: relationshipCount,
	}

	if stats.Total() == 0 {
		return &models.MemoryContext{Text: "", Stats: stats}, nil
	}

	var sb strings.Builder
	limits := map[models.EntityType]int{
		models.EntityTypePerson:     topPeopleLimit,
		models.EntityTypePlace:      topPlacesLimit,
		models.EntityTypeEvent:      topEventsLimit,
		models.EntityTypeTimePeriod: topTimePeriodLimit,
		models.EntityTypeEmotion:    topEmotionLimit,
	}

	for _, entityType := range models.AllEntityTypes {
		if counts[entityType] == 0 {
			continue
		}

		entities, err := s.entityRepo.TopByType(ctx, userID, entityType, limits[entityType])
		if err != nil {
			return nil, fmt.Errorf("top %s entities: %w", entityType, err)
		}
		if len(entities) == 0 {
			continue
		}

		sb.WriteString(sectionTitles[entityType])
		sb.WriteString(":\n")
		for _, entity := range entities {
			sb.WriteString("- ")
			sb.WriteString(entity.Name)
			if entity.MentionCount > 1 {
				fmt.Fprintf(&sb, " (mentioned %d times)", entity.MentionCount)
			}
			if entity.Description != "" {
				sb.WriteString(": ")
				sb.WriteString(entity.Description)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if relationshipCount > 0 {
		edges, err := s.relationshipRepo.ListForUser(ctx, userID, relationshipLimit)
		if err != nil {
			return nil, fmt.Errorf("list relationships: %w", err)
		}
		if len(edges) > 0 {
			sb.WriteString("Relationships:\n")
			for _, edge := range edges {
				fmt.Fprintf(&sb, "- %s %s %s", edge.Entity1Name, edge.RelationshipType, edge.Entity2Name)
				sb.WriteString("\n")
			}
		}
	}

	text := strings.TrimSpace(sb.String())
	if s.budget > 0 && len(text) > s.budget {
		text = truncateAtLine(text, s.budget)
	}

	return &models.MemoryContext{Text: text, Stats: stats}, nil
}

// truncateAtLine cuts text at the last full line within budget so the block
// never ends mid-entry, and never mid-rune when no line break is in reach.
func truncateAtLine(text string, budget int) string {
	cut := text[:budget]
	for len(cut) > 0 {
		r, size := utf8.DecodeLastRuneInString(cut)
		if r != utf8.RuneError || size != 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}
