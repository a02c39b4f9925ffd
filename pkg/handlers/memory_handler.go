package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memoirhq/memoir-engine/pkg/auth"
	"github.com/memoirhq/memoir-engine/pkg/models"
	"github.com/memoirhq/memoir-engine/pkg/ratelimit"
	"github.com/memoirhq/memoir-engine/pkg/repositories"
	"github.com/memoirhq/memoir-engine/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// ExtractRequest for POST /api/memory/extract
type ExtractRequest struct {
	Text       string     `json:"text"`
	ChapterID  *uuid.UUID `json:"chapter_id,omitempty"`
	QuestionID *uuid.UUID `json:"question_id,omitempty"`
	StoryID    *uuid.UUID `json:"story_id,omitempty"`
}

// ExtractResponse carries the committed entities alongside the raw
// extraction output the remote service produced.
type ExtractResponse struct {
	Entities      []*models.Entity         `json:"entities"`
	Relationships int                      `json:"relationships"`
	Failures      int                      `json:"failures"`
	Raw           *models.ExtractionResult `json:"raw"`
}

// EntityListResponse for GET /api/memory/entities
type EntityListResponse struct {
	Entities []*models.Entity `json:"entities"`
	Total    int              `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// MemoryHandler handles memory graph HTTP requests.
type MemoryHandler struct {
	extraction services.ExtractionService
	graph      services.GraphService
	context    services.ContextService
	entities   repositories.EntityRepository
	limiter    *ratelimit.Limiter
	logger     *zap.Logger
}

// NewMemoryHandler creates a new memory handler.
func NewMemoryHandler(
	extraction services.ExtractionService,
	graph services.GraphService,
	contextService services.ContextService,
	entities repositories.EntityRepository,
	limiter *ratelimit.Limiter,
	logger *zap.Logger,
) *MemoryHandler {
	return &MemoryHandler{
		extraction: extraction,
		graph:      graph,
		context:    contextService,
		entities:   entities,
		limiter:    limiter,
		logger:     logger,
	}
}

// RegisterRoutes registers the memory handler's routes on the given mux.
func (h *MemoryHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/memory/extract", authMiddleware.RequireUser(h.Extract))
	mux.HandleFunc("GET /api/memory/entities", authMiddleware.RequireUser(h.ListEntities))
	mux.HandleFunc("GET /api/memory/entities/{type}", authMiddleware.RequireUser(h.ListEntitiesByType))
	mux.HandleFunc("GET /api/memory/context", authMiddleware.RequireUser(h.Context))
	mux.HandleFunc("GET /api/memory/connections/{name}", authMiddleware.RequireUser(h.Connections))
}

// Extract handles POST /api/memory/extract
// Runs one extraction synchronously and commits the results. The background
// queue is the normal path; this endpoint exists for reprocessing and tooling.
func (h *MemoryHandler) Extract(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	if !h.extraction.Eligible(req.Text) {
		// Too short to carry entities, or the remote service is not
		// configured. Either way the graph is simply left untouched, and
		// no rate limit budget is spent on a call that cannot happen.
		if err := WriteJSON(w, http.StatusOK, ExtractResponse{
			Entities: []*models.Entity{},
			Raw:      models.EmptyExtractionResult(),
		}); err != nil {
			h.logger.Error("Failed to encode extract response", zap.Error(err))
		}
		return
	}

	decision := h.limiter.CheckAndConsume(userID)
	if !decision.Allowed {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(decision.ResetIn.Seconds())+1))
		writeError(w, h.logger, http.StatusTooManyRequests, "rate_limited",
			fmt.Sprintf("Extraction limit reached, retry in %ds", int(decision.ResetIn.Seconds())+1))
		return
	}

	sanitized := h.extraction.Sanitize(req.Text)
	result, err := h.extraction.Extract(r.Context(), sanitized)
	if err != nil {
		h.logger.Error("Extraction failed",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		writeError(w, h.logger, http.StatusBadGateway, "extraction_failed", "Extraction service unavailable")
		return
	}

	stats := h.graph.CommitExtraction(r.Context(), userID, result,
		req.ChapterID, req.QuestionID, req.StoryID)

	response := ExtractResponse{
		Entities:      stats.Entities,
		Relationships: stats.Relationships,
		Failures:      stats.Failures,
		Raw:           result,
	}
	if response.Entities == nil {
		response.Entities = []*models.Entity{}
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode extract response", zap.Error(err))
	}
}

// ListEntities handles GET /api/memory/entities
func (h *MemoryHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	entities, err := h.entities.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list entities",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "list_entities_failed", "Failed to list entities")
		return
	}

	if err := WriteJSON(w, http.StatusOK, EntityListResponse{Entities: entities, Total: len(entities)}); err != nil {
		h.logger.Error("Failed to encode entity list response", zap.Error(err))
	}
}

// ListEntitiesByType handles GET /api/memory/entities/{type}
func (h *MemoryHandler) ListEntitiesByType(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	entityType, ok := models.ParseEntityType(r.PathValue("type"))
	if !ok {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_entity_type",
			fmt.Sprintf("Unknown entity type %q, expected one of: %s",
				r.PathValue("type"), entityTypeList()))
		return
	}

	entities, err := h.entities.ListByType(r.Context(), userID, entityType)
	if err != nil {
		h.logger.Error("Failed to list entities by type",
			zap.String("user_id", userID.String()),
			zap.String("entity_type", string(entityType)),
			zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "list_entities_failed", "Failed to list entities")
		return
	}

	if err := WriteJSON(w, http.StatusOK, EntityListResponse{Entities: entities, Total: len(entities)}); err != nil {
		h.logger.Error("Failed to encode entity list response", zap.Error(err))
	}
}

// Context handles GET /api/memory/context
func (h *MemoryHandler) Context(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	memoryContext, err := h.context.BuildContext(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to build memory context",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "build_context_failed", "Failed to build memory context")
		return
	}

	if err := WriteJSON(w, http.StatusOK, memoryContext); err != nil {
		h.logger.Error("Failed to encode context response", zap.Error(err))
	}
}

// Connections handles GET /api/memory/connections/{name}
func (h *MemoryHandler) Connections(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	connections, err := h.graph.ConnectionsFor(r.Context(), userID, name)
	if err != nil {
		h.logger.Error("Failed to look up connections",
			zap.String("user_id", userID.String()),
			zap.String("name", name),
			zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "connections_failed", "Failed to look up connections")
		return
	}

	if err := WriteJSON(w, http.StatusOK, connections); err != nil {
		h.logger.Error("Failed to encode connections response", zap.Error(err))
	}
}

func entityTypeList() string {
	names := make([]string, 0, len(models.AllEntityTypes))
	for _, t := range models.AllEntityTypes {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}
