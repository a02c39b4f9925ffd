package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memoirhq/memoir-engine/pkg/auth"
	"github.com/memoirhq/memoir-engine/pkg/models"
	"github.com/memoirhq/memoir-engine/pkg/repositories"
	"github.com/memoirhq/memoir-engine/pkg/services"
)

// CreateStoryRequest for POST /api/stories
type CreateStoryRequest struct {
	Content    string     `json:"content"`
	ChapterID  *uuid.UUID `json:"chapter_id,omitempty"`
	QuestionID *uuid.UUID `json:"question_id,omitempty"`
}

// CreateStoryResponse reports the saved story and whether a background
// extraction run was scheduled for it.
type CreateStoryResponse struct {
	Story              *models.Story `json:"story"`
	ExtractionEnqueued bool          `json:"extraction_enqueued"`
}

// StoryHandler handles narrative answer HTTP requests. Saving returns as soon
// as the row is written; memory extraction happens in the background.
type StoryHandler struct {
	stories repositories.StoryRepository
	queue   *services.ExtractionQueue
	logger  *zap.Logger
}

// NewStoryHandler creates a new story handler.
func NewStoryHandler(
	stories repositories.StoryRepository,
	queue *services.ExtractionQueue,
	logger *zap.Logger,
) *StoryHandler {
	return &StoryHandler{
		stories: stories,
		queue:   queue,
		logger:  logger,
	}
}

// RegisterRoutes registers the story handler's routes on the given mux.
func (h *StoryHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/stories", authMiddleware.RequireUser(h.Create))
}

// Create handles POST /api/stories
func (h *StoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var req CreateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "content is required")
		return
	}

	story := &models.Story{
		UserID:     userID,
		ChapterID:  req.ChapterID,
		QuestionID: req.QuestionID,
		Content:    req.Content,
	}

	if err := h.stories.Create(r.Context(), story); err != nil {
		h.logger.Error("Failed to create story",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "create_story_failed", "Failed to save story")
		return
	}

	enqueued := h.queue.Enqueue(services.ExtractionJob{
		UserID:     userID,
		Text:       story.Content,
		ChapterID:  story.ChapterID,
		QuestionID: story.QuestionID,
		StoryID:    &story.ID,
	})

	response := CreateStoryResponse{Story: story, ExtractionEnqueued: enqueued}
	if err := WriteJSON(w, http.StatusCreated, response); err != nil {
		h.logger.Error("Failed to encode story response", zap.Error(err))
	}
}
