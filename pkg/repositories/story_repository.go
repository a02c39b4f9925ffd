package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/memoirhq/memoir-engine/pkg/apperrors"
	"github.com/memoirhq/memoir-engine/pkg/database"
	"github.com/memoirhq/memoir-engine/pkg/models"
)

// StoryRepository persists narrative answers. The authoring product owns the
// full story lifecycle; this subsystem needs only enough to anchor mentions.
type StoryRepository interface {
	Create(ctx context.Context, story *models.Story) error
	GetByID(ctx context.Context, userID, storyID uuid.UUID) (*models.Story, error)
}

type storyRepository struct {
	db *database.DB
}

// NewStoryRepository creates a new StoryRepository.
func NewStoryRepository(db *database.DB) StoryRepository {
	return &storyRepository{db: db}
}

var _ StoryRepository = (*storyRepository)(nil)

func (r *storyRepository) Create(ctx context.Context, story *models.Story) error {
	if story.ID == uuid.Nil {
		story.ID = uuid.New()
	}

	query := `
		INSERT INTO memoir_stories (id, user_id, chapter_id, question_id, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		story.ID, story.UserID, story.ChapterID, story.QuestionID, story.Content,
	).Scan(&story.CreatedAt, &story.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create story: %w", err)
	}

	return nil
}

func (r *storyRepository) GetByID(ctx context.Context, userID, storyID uuid.UUID) (*models.Story, error) {
	query := `
		SELECT id, user_id, chapter_id, question_id, content, created_at, updated_at
		FROM memoir_stories
		WHERE id = $1 AND user_id = $2`

	var s models.Story
	err := r.db.QueryRow(ctx, query, storyID, userID).Scan(
		&s.ID, &s.UserID, &s.ChapterID, &s.QuestionID, &s.Content, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get story: %w", err)
	}

	return &s, nil
}
