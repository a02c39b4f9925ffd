package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/memoirhq/memoir-engine/pkg/apperrors"
	"github.com/memoirhq/memoir-engine/pkg/config"
	"github.com/memoirhq/memoir-engine/pkg/llm"
	"github.com/memoirhq/memoir-engine/pkg/models"
	"github.com/memoirhq/memoir-engine/pkg/ratelimit"
	"github.com/memoirhq/memoir-engine/pkg/services"
)

type mockStoryRepo struct {
	created []*models.Story
	err     error
}

func (m *mockStoryRepo) Create(ctx context.Context, story *models.Story) error {
	if m.err != nil {
		return m.err
	}
	story.ID = uuid.New()
	story.CreatedAt = time.Now()
	story.UpdatedAt = story.CreatedAt
	m.created = append(m.created, story)
	return nil
}

func (m *mockStoryRepo) GetByID(ctx context.Context, userID, storyID uuid.UUID) (*models.Story, error) {
	for _, story := range m.created {
		if story.ID == storyID && story.UserID == userID {
			return story, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// newIdleQueue builds a queue whose extraction service is unconfigured, so
// every job is rejected at the eligibility gate.
func newIdleQueue(t *testing.T) *services.ExtractionQueue {
	t.Helper()
	extraction := services.NewExtractionService(nil, config.ExtractionConfig{
		MinTextLength:  20,
		RequestTimeout: time.Second,
	}, 0.2, zap.NewNop())
	queue := services.NewExtractionQueue(extraction, &mockGraphService{}, ratelimit.New(30, time.Minute), 1, 4, zap.NewNop())
	t.Cleanup(queue.Close)
	return queue
}

// newLiveQueue builds a queue backed by a mock generation client that
// returns no entities, so jobs are accepted and drain quickly.
func newLiveQueue(t *testing.T) *services.ExtractionQueue {
	t.Helper()
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		return `{"people":[]}`, nil
	}
	extraction := services.NewExtractionService(mock, config.ExtractionConfig{
		MinTextLength:  20,
		MaxTextLength:  8000,
		RequestTimeout: time.Second,
	}, 0.2, zap.NewNop())
	queue := services.NewExtractionQueue(extraction, &mockGraphService{}, ratelimit.New(30, time.Minute), 1, 4, zap.NewNop())
	t.Cleanup(queue.Close)
	return queue
}

func TestCreateStory_SavesAndEnqueues(t *testing.T) {
	stories := &mockStoryRepo{}
	h := NewStoryHandler(stories, newLiveQueue(t), zap.NewNop())
	userID := uuid.New()

	body := `{"content": "my grandmother taught me how to bake bread every sunday"}`
	r := authed(httptest.NewRequest(http.MethodPost, "/api/stories", strings.NewReader(body)), userID)
	w := httptest.NewRecorder()

	h.Create(w, r)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp CreateStoryResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.ExtractionEnqueued)
	assert.NotEqual(t, uuid.Nil, resp.Story.ID)
	assert.Equal(t, userID, resp.Story.UserID)

	require.Len(t, stories.created, 1)
}

func TestCreateStory_SaveSucceedsWhenExtractionUnavailable(t *testing.T) {
	stories := &mockStoryRepo{}
	h := NewStoryHandler(stories, newIdleQueue(t), zap.NewNop())

	body := `{"content": "my grandmother taught me how to bake bread every sunday"}`
	r := authed(httptest.NewRequest(http.MethodPost, "/api/stories", strings.NewReader(body)), uuid.New())
	w := httptest.NewRecorder()

	h.Create(w, r)

	// The save path never depends on extraction availability.
	require.Equal(t, http.StatusCreated, w.Code)

	var resp CreateStoryResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.ExtractionEnqueued)
	require.Len(t, stories.created, 1)
}

func TestCreateStory_InvalidBody(t *testing.T) {
	h := NewStoryHandler(&mockStoryRepo{}, newIdleQueue(t), zap.NewNop())

	for _, body := range []string{"not json", `{"content": ""}`, `{"content": "   "}`} {
		r := authed(httptest.NewRequest(http.MethodPost, "/api/stories", strings.NewReader(body)), uuid.New())
		w := httptest.NewRecorder()

		h.Create(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body: %s", body)
	}
}

func TestCreateStory_RepositoryError(t *testing.T) {
	h := NewStoryHandler(&mockStoryRepo{err: errors.New("insert failed")}, newIdleQueue(t), zap.NewNop())

	body := `{"content": "my grandmother taught me how to bake bread every sunday"}`
	r := authed(httptest.NewRequest(http.MethodPost, "/api/stories", strings.NewReader(body)), uuid.New())
	w := httptest.NewRecorder()

	h.Create(w, r)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
