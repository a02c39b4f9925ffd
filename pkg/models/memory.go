package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntityType is the closed set of node categories in a user's memory graph.
type EntityType string

const (
	EntityTypePerson     EntityType = "person"
	EntityTypePlace      EntityType = "place"
	EntityTypeEvent      EntityType = "event"
	EntityTypeTimePeriod EntityType = "time_period"
	EntityTypeEmotion    EntityType = "emotion"
)

// AllEntityTypes lists every valid entity type in presentation order.
var AllEntityTypes = []EntityType{
	EntityTypePerson,
	EntityTypePlace,
	EntityTypeEvent,
	EntityTypeTimePeriod,
	EntityTypeEmotion,
}

// ParseEntityType validates a raw type string against the closed enumeration.
func ParseEntityType(raw string) (EntityType, bool) {
	t := EntityType(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range AllEntityTypes {
		if t == known {
			return known, true
		}
	}
	return "", false
}

// Sentiment values recorded on mentions.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
	SentimentMixed    = "mixed"
)

// NormalizeSentiment maps arbitrary extraction output onto the known
// sentiment values, defaulting to neutral.
func NormalizeSentiment(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case SentimentPositive, SentimentNegative, SentimentMixed:
		return s
	default:
		return SentimentNeutral
	}
}

// NormalizeEntityName produces the dedup key for an entity name.
// Resolution is deliberately lexical: lowercase, trimmed, inner whitespace
// collapsed. Semantic/embedding resolution is out of scope.
func NormalizeEntityName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Entity is a deduplicated node in one user's memory graph.
// The tuple (user_id, entity_type, name_key) is unique; repeated mentions
// increment MentionCount rather than creating new rows.
// Stored in memoir_entities.
type Entity struct {
	ID                     uuid.UUID  `json:"id"`
	UserID                 uuid.UUID  `json:"user_id"`
	EntityType             EntityType `json:"entity_type"`
	Name                   string     `json:"name"`
	Description            string     `json:"description"`
	MentionCount           int        `json:"mention_count"`
	FirstMentionedChapter  *uuid.UUID `json:"first_mentioned_chapter,omitempty"`
	FirstMentionedQuestion *uuid.UUID `json:"first_mentioned_question,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// EntityMention records one occurrence of an entity inside one story.
// Mentions are append-only and never deduplicated: re-extracting the same
// story adds rows, which is accepted behavior.
type EntityMention struct {
	ID        uuid.UUID  `json:"id"`
	EntityID  uuid.UUID  `json:"entity_id"`
	StoryID   *uuid.UUID `json:"story_id,omitempty"`
	Context   string     `json:"context"`
	Sentiment string     `json:"sentiment"`
	CreatedAt time.Time  `json:"created_at"`
}

// EntityRelationship is a directed, typed edge between two entities owned by
// the same user. The tuple (entity1_id, entity2_id, relationship_type) is
// unique; re-extraction of an existing edge is a no-op.
type EntityRelationship struct {
	ID               uuid.UUID `json:"id"`
	Entity1ID        uuid.UUID `json:"entity1_id"`
	Entity2ID        uuid.UUID `json:"entity2_id"`
	RelationshipType string    `json:"relationship_type"`
	Description      string    `json:"description"`
	CreatedAt        time.Time `json:"created_at"`
}

// RelationshipEdge is a relationship joined with its endpoint entity names,
// the shape the context assembler and connections endpoint render from.
type RelationshipEdge struct {
	Entity1Name      string     `json:"entity1_name"`
	Entity1Type      EntityType `json:"entity1_type"`
	Entity2Name      string     `json:"entity2_name"`
	Entity2Type      EntityType `json:"entity2_type"`
	RelationshipType string     `json:"relationship_type"`
	Description      string     `json:"description"`
}

// Story is a saved narrative answer. The authoring product owns the full
// story lifecycle; this subsystem keeps the minimal row mentions point at.
type Story struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	ChapterID  *uuid.UUID `json:"chapter_id,omitempty"`
	QuestionID *uuid.UUID `json:"question_id,omitempty"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
