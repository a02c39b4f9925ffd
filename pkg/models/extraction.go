package models

// ExtractedEntity is one entity as returned by the extraction model,
// before it is merged into the graph.
type ExtractedEntity struct {
	Name      string `json:"name"`
	Context   string `json:"context"`
	Sentiment string `json:"sentiment,omitempty"`
}

// ExtractedRelationship is one edge as returned by the extraction model.
// Endpoints are canonical names, resolved against stored entities at commit.
type ExtractedRelationship struct {
	Entity1     string `json:"entity1"`
	Entity2     string `json:"entity2"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ExtractionResult is the parsed output of one extraction run.
// All fields default to empty slices; a failed or skipped run is
// indistinguishable from "nothing found", by design.
type ExtractionResult struct {
	People        []ExtractedEntity       `json:"people"`
	Places        []ExtractedEntity       `json:"places"`
	Events        []ExtractedEntity       `json:"events"`
	TimePeriods   []ExtractedEntity       `json:"time_periods"`
	Emotions      []ExtractedEntity       `json:"emotions"`
	Relationships []ExtractedRelationship `json:"relationships"`
}

// EmptyExtractionResult returns the all-empty shape used when extraction
// is skipped or its response cannot be parsed.
func EmptyExtractionResult() *ExtractionResult {
	return &ExtractionResult{
		People:        []ExtractedEntity{},
		Places:        []ExtractedEntity{},
		Events:        []ExtractedEntity{},
		TimePeriods:   []ExtractedEntity{},
		Emotions:      []ExtractedEntity{},
		Relationships: []ExtractedRelationship{},
	}
}

// ExtractedGroup pairs an entity type with the entities extracted for it.
type ExtractedGroup struct {
	Type     EntityType
	Entities []ExtractedEntity
}

// ByType returns the extracted entities grouped under their graph type,
// in the canonical type order.
func (r *ExtractionResult) ByType() []ExtractedGroup {
	return []ExtractedGroup{
		{Type: EntityTypePerson, Entities: r.People},
		{Type: EntityTypePlace, Entities: r.Places},
		{Type: EntityTypeEvent, Entities: r.Events},
		{Type: EntityTypeTimePeriod, Entities: r.TimePeriods},
		{Type: EntityTypeEmotion, Entities: r.Emotions},
	}
}

// TotalEntities counts entities across all five categories.
func (r *ExtractionResult) TotalEntities() int {
	return len(r.People) + len(r.Places) + len(r.Events) + len(r.TimePeriods) + len(r.Emotions)
}

// MemoryContext is the bounded, ranked summary of a user's graph handed to
// downstream generation features as conversational grounding.
type MemoryContext struct {
	Text  string       `json:"text"`
	Stats ContextStats `json:"stats"`
}

// ContextStats reports distinct entity counts per category, independent of
// how much of the graph made it into the truncated text.
type ContextStats struct {
	People        int `json:"people"`
	Places        int `json:"places"`
	Events        int `json:"events"`
	TimePeriods   int `json:"time_periods"`
	Emotions      int `json:"emotions"`
	Relationships int `json:"relationships"`
}

// Total returns the number of distinct entities across all categories.
func (s ContextStats) Total() int {
	return s.People + s.Places + s.Events + s.TimePeriods + s.Emotions
}
