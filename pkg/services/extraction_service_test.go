package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/memoirhq/memoir-engine/pkg/apperrors"
	"github.com/memoirhq/memoir-engine/pkg/config"
	"github.com/memoirhq/memoir-engine/pkg/llm"
)

func testExtractionConfig() config.ExtractionConfig {
	return config.ExtractionConfig{
		MinTextLength:  20,
		MaxTextLength:  8000,
		RequestTimeout: 5 * time.Second,
	}
}

func TestEligible_RequiresConfiguredClientAndLengthFloor(t *testing.T) {
	unconfigured := NewExtractionService(nil, testExtractionConfig(), 0.2, zap.NewNop())
	assert.False(t, unconfigured.Eligible("a long enough narrative answer about my childhood"))

	svc := NewExtractionService(llm.NewMockLLMClient(), testExtractionConfig(), 0.2, zap.NewNop())
	assert.False(t, svc.Eligible("too short"))
	assert.False(t, svc.Eligible("                              "))
	assert.True(t, svc.Eligible("my grandmother taught me how to bake bread"))
}

func TestExtract_UnconfiguredClientReturnsErrNotConfigured(t *testing.T) {
	svc := NewExtractionService(nil, testExtractionConfig(), 0.2, zap.NewNop())

	result, err := svc.Extract(context.Background(), "some sanitized text")
	assert.ErrorIs(t, err, apperrors.ErrNotConfigured)
	assert.Nil(t, result)
}

func TestExtract_ParsesWrappedJSON(t *testing.T) {
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		return "Here is what I found:\n```json\n" +
			`{"people":[{"name":"Grandma Rose","context":"taught me to bake","sentiment":"positive"}],` +
			`"places":[],"events":[],"time_periods":[],"emotions":[],` +
			`"relationships":[{"entity1":"Grandma Rose","entity2":"Lake Cottage","type":"lived at"}]}` +
			"\n```", nil
	}
	svc := NewExtractionService(mock, testExtractionConfig(), 0.2, zap.NewNop())

	result, err := svc.Extract(context.Background(), "my grandmother taught me how to bake bread")
	require.NoError(t, err)

	require.Len(t, result.People, 1)
	assert.Equal(t, "Grandma Rose", result.People[0].Name)
	assert.Len(t, result.Relationships, 1)
	assert.Equal(t, 1, mock.GenerateResponseCalls)
	assert.Contains(t, mock.LastPrompt, "my grandmother taught me how to bake bread")
}

func TestExtract_RemoteErrorIsReturned(t *testing.T) {
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		return "", errors.New("connection refused")
	}
	svc := NewExtractionService(mock, testExtractionConfig(), 0.2, zap.NewNop())

	_, err := svc.Extract(context.Background(), "my grandmother taught me how to bake bread")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extraction call failed")
}

func TestExtract_UnparseableResponseDegradesToEmpty(t *testing.T) {
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		return "I could not produce structured output, sorry.", nil
	}
	svc := NewExtractionService(mock, testExtractionConfig(), 0.2, zap.NewNop())

	result, err := svc.Extract(context.Background(), "my grandmother taught me how to bake bread")
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalEntities())
	assert.NotNil(t, result.People)
}

func TestExtract_DropsBlankNamesAndEndpoints(t *testing.T) {
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		return `{"people":[{"name":"  "},{"name":"Mother"}],` +
			`"relationships":[{"entity1":"Mother","entity2":"","type":"knew"}]}`, nil
	}
	svc := NewExtractionService(mock, testExtractionConfig(), 0.2, zap.NewNop())

	result, err := svc.Extract(context.Background(), "my mother always sang while cooking dinner")
	require.NoError(t, err)
	require.Len(t, result.People, 1)
	assert.Equal(t, "Mother", result.People[0].Name)
	assert.Empty(t, result.Relationships)
}

func TestSanitize_AppliesLengthCapAndFiltering(t *testing.T) {
	cfg := testExtractionConfig()
	cfg.MaxTextLength = 50
	svc := NewExtractionService(llm.NewMockLLMClient(), cfg, 0.2, zap.NewNop())

	long := strings.Repeat("a", 80)
	sanitized := svc.Sanitize(long)
	assert.True(t, strings.HasSuffix(sanitized, "..."))
	assert.LessOrEqual(t, len(sanitized), 53)
}
