package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/memoirhq/memoir-engine/pkg/models"
)

func newTestGraphService(entityRepo *mockEntityRepository, relRepo *mockRelationshipRepository) GraphService {
	return NewGraphService(entityRepo, relRepo, zap.NewNop())
}

func TestCommitExtraction_CreatesEntitiesAndMentions(t *testing.T) {
	entityRepo := newMockEntityRepository()
	relRepo := &mockRelationshipRepository{}
	svc := newTestGraphService(entityRepo, relRepo)
	userID := uuid.New()

	result := &models.ExtractionResult{
		People: []models.ExtractedEntity{
			{Name: "Grandma Rose", Context: "taught me to bake", Sentiment: "positive"},
		},
		Places: []models.ExtractedEntity{
			{Name: "Lake Cottage", Context: "summer vacations"},
		},
	}

	stats := svc.CommitExtraction(context.Background(), userID, result, nil, nil, nil)

	assert.Len(t, stats.Entities, 2)
	assert.Equal(t, 0, stats.Failures)
	assert.Len(t, entityRepo.mentions, 2)
	assert.Equal(t, 1, stats.Entities[0].MentionCount)
}

func TestCommitExtraction_RepeatMentionIncrementsCount(t *testing.T) {
	entityRepo := newMockEntityRepository()
	relRepo := &mockRelationshipRepository{}
	svc := newTestGraphService(entityRepo, relRepo)
	userID := uuid.New()

	first := &models.ExtractionResult{
		People: []models.ExtractedEntity{{Name: "Grandma Rose", Context: "taught me to bake"}},
	}
	second := &models.ExtractionResult{
		People: []models.ExtractedEntity{{Name: "grandma  rose", Context: "her kitchen smelled of cinnamon"}},
	}

	statsFirst := svc.CommitExtraction(context.Background(), userID, first, nil, nil, nil)
	statsSecond := svc.CommitExtraction(context.Background(), userID, second, nil, nil, nil)

	require.Len(t, statsFirst.Entities, 1)
	require.Len(t, statsSecond.Entities, 1)

	// Same normalized name resolves to the same node, not a new one.
	assert.Equal(t, statsFirst.Entities[0].ID, statsSecond.Entities[0].ID)
	assert.Equal(t, 2, statsSecond.Entities[0].MentionCount)
	assert.Len(t, entityRepo.entities, 1)

	// Mentions are append-only, one per sighting.
	assert.Len(t, entityRepo.mentions, 2)
}

func TestCommitExtraction_SameBatchRelationshipResolves(t *testing.T) {
	entityRepo := newMockEntityRepository()
	relRepo := &mockRelationshipRepository{}
	svc := newTestGraphService(entityRepo, relRepo)
	userID := uuid.New()

	result := &models.ExtractionResult{
		People: []models.ExtractedEntity{
			{Name: "Father", Context: "worked at the mill"},
			{Name: "Uncle Joe", Context: "lived next door"},
		},
		Relationships: []models.ExtractedRelationship{
			{Entity1: "Father", Entity2: "Uncle Joe", Type: "brother of"},
		},
	}

	stats := svc.CommitExtraction(context.Background(), userID, result, nil, nil, nil)

	// Entities commit before edges, so an edge between two entities of the
	// same batch always resolves.
	assert.Equal(t, 1, stats.Relationships)
	assert.Equal(t, 0, stats.Failures)
	assert.Len(t, relRepo.rels, 1)
}

func TestCommitExtraction_UnresolvableEndpointIsSilentlyDropped(t *testing.T) {
	entityRepo := newMockEntityRepository()
	relRepo := &mockRelationshipRepository{}
	svc := newTestGraphService(entityRepo, relRepo)
	userID := uuid.New()

	result := &models.ExtractionResult{
		People: []models.ExtractedEntity{{Name: "Father", Context: "worked at the mill"}},
		Relationships: []models.ExtractedRelationship{
			{Entity1: "Father", Entity2: "Someone Never Extracted", Type: "knew"},
		},
	}

	stats := svc.CommitExtraction(context.Background(), userID, result, nil, nil, nil)

	assert.Equal(t, 0, stats.Relationships)
	assert.Equal(t, 0, stats.Failures)
	assert.Empty(t, relRepo.rels)
}

func TestCommitExtraction_FailureIsolatedToItem(t *testing.T) {
	entityRepo := newMockEntityRepository()
	entityRepo.upsertErrFor["Bad Entity"] = errors.New("insert failed")
	relRepo := &mockRelationshipRepository{}
	svc := newTestGraphService(entityRepo, relRepo)
	userID := uuid.New()

	result := &models.ExtractionResult{
		People: []models.ExtractedEntity{
			{Name: "Bad Entity"},
			{Name: "Good Entity", Context: "still committed"},
		},
	}

	stats := svc.CommitExtraction(context.Background(), userID, result, nil, nil, nil)

	assert.Equal(t, 1, stats.Failures)
	require.Len(t, stats.Entities, 1)
	assert.Equal(t, "Good Entity", stats.Entities[0].Name)
}

func TestCommitExtraction_RecordsFirstMentionedProvenance(t *testing.T) {
	entityRepo := newMockEntityRepository()
	relRepo := &mockRelationshipRepository{}
	svc := newTestGraphService(entityRepo, relRepo)
	userID := uuid.New()
	chapterID := uuid.New()
	storyID := uuid.New()

	result := &models.ExtractionResult{
		Emotions: []models.ExtractedEntity{{Name: "joy", Context: "riding the bike", Sentiment: "positive"}},
	}

	stats := svc.CommitExtraction(context.Background(), userID, result, &chapterID, nil, &storyID)

	require.Len(t, stats.Entities, 1)
	require.NotNil(t, stats.Entities[0].FirstMentionedChapter)
	assert.Equal(t, chapterID, *stats.Entities[0].FirstMentionedChapter)

	require.Len(t, entityRepo.mentions, 1)
	require.NotNil(t, entityRepo.mentions[0].StoryID)
	assert.Equal(t, storyID, *entityRepo.mentions[0].StoryID)
}

func TestLinkRelationship_ResolvesAcrossEntityTypes(t *testing.T) {
	entityRepo := newMockEntityRepository()
	relRepo := &mockRelationshipRepository{}
	svc := newTestGraphService(entityRepo, relRepo)
	userID := uuid.New()

	seed := &models.ExtractionResult{
		People: []models.ExtractedEntity{{Name: "Mother"}},
		Places: []models.ExtractedEntity{{Name: "Chicago"}},
	}
	svc.CommitExtraction(context.Background(), userID, seed, nil, nil, nil)

	linked, err := svc.LinkRelationship(context.Background(), userID, "Mother", "Chicago", "grew up in", "")
	require.NoError(t, err)
	assert.True(t, linked)
	assert.Len(t, relRepo.rels, 1)
}

func TestConnectionsFor_NotFound(t *testing.T) {
	entityRepo := newMockEntityRepository()
	relRepo := &mockRelationshipRepository{}
	svc := newTestGraphService(entityRepo, relRepo)

	connections, err := svc.ConnectionsFor(context.Background(), uuid.New(), "nobody")
	require.NoError(t, err)
	assert.False(t, connections.Found)
	assert.Nil(t, connections.Entity)
}

func TestConnectionsFor_FuzzyMatchReturnsNeighborhood(t *testing.T) {
	entityRepo := newMockEntityRepository()
	relRepo := &mockRelationshipRepository{
		edges: []*models.RelationshipEdge{
			{Entity1Name: "Grandma Rose", Entity2Name: "Lake Cottage", RelationshipType: "lived at"},
		},
	}
	svc := newTestGraphService(entityRepo, relRepo)
	userID := uuid.New()

	seed := &models.ExtractionResult{
		People: []models.ExtractedEntity{{Name: "Grandma Rose", Context: "taught me to bake", Sentiment: "positive"}},
	}
	svc.CommitExtraction(context.Background(), userID, seed, nil, nil, nil)

	connections, err := svc.ConnectionsFor(context.Background(), userID, "grandma")
	require.NoError(t, err)
	require.True(t, connections.Found)
	assert.Equal(t, "Grandma Rose", connections.Entity.Name)
	assert.Len(t, connections.Relationships, 1)
	assert.Len(t, connections.Mentions, 1)
}
