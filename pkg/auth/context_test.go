package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUserID(t *testing.T) {
	userID := uuid.New()
	ctx := WithUserID(context.Background(), userID)

	got, ok := GetUserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, userID, got)
}

func TestGetUserID_Missing(t *testing.T) {
	_, ok := GetUserID(context.Background())
	assert.False(t, ok)

	_, ok = GetUserID(WithUserID(context.Background(), uuid.Nil))
	assert.False(t, ok)
}

func TestRequireUserID(t *testing.T) {
	userID := uuid.New()

	got, err := RequireUserID(WithUserID(context.Background(), userID))
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = RequireUserID(context.Background())
	assert.Error(t, err)
}
