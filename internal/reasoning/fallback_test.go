package reasoning_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"claimflow/internal/port"
	"claimflow/internal/reasoning"
	"claimflow/mocks"
)

var req = port.ReasoningRequest{Instruction: "structure", Input: "claim text", Temperature: 0.1}

func resp(model string) *port.ReasoningResponse {
	return &port.ReasoningResponse{Text: `{"document_type":"claim"}`, ModelUsed: model}
}

func TestFallbackReasoner_FirstSucceeds(t *testing.T) {
	r1 := new(mocks.MockReasoner)
	r2 := new(mocks.MockReasoner)
	r1.On("Complete", mock.Anything, req).Return(resp("gpt-4o-mini"), nil)

	fr := reasoning.NewFallbackReasoner([]port.Reasoner{r1, r2}, []string{"azure-openai", "anthropic"})

	out, err := fr.Complete(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", out.ModelUsed)
	r2.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestFallbackReasoner_FirstFails_SecondSucceeds(t *testing.T) {
	r1 := new(mocks.MockReasoner)
	r2 := new(mocks.MockReasoner)
	r1.On("Complete", mock.Anything, req).Return(nil, errors.New("generic error"))
	r2.On("Complete", mock.Anything, req).Return(resp("claude"), nil)

	fr := reasoning.NewFallbackReasoner([]port.Reasoner{r1, r2}, []string{"azure-openai", "anthropic"})

	out, err := fr.Complete(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "claude", out.ModelUsed)
}

func TestFallbackReasoner_OpenCircuitIsSkipped(t *testing.T) {
	r1 := new(mocks.MockReasoner)
	r2 := new(mocks.MockReasoner)
	r1.On("Complete", mock.Anything, req).Return(nil, reasoning.NewRateLimitError("azure-openai", "gpt-4o-mini", errors.New("429"), time.Minute)).Once()
	r2.On("Complete", mock.Anything, req).Return(resp("claude"), nil).Twice()

	fr := reasoning.NewFallbackReasoner([]port.Reasoner{r1, r2}, []string{"azure-openai", "anthropic"})

	_, err := fr.Complete(context.Background(), req)
	require.NoError(t, err)
	_, err = fr.Complete(context.Background(), req)
	require.NoError(t, err)

	r1.AssertNumberOfCalls(t, "Complete", 1)
	r2.AssertNumberOfCalls(t, "Complete", 2)
}

func TestFallbackReasoner_AllRateLimited(t *testing.T) {
	r1 := new(mocks.MockReasoner)
	r2 := new(mocks.MockReasoner)
	r1.On("Complete", mock.Anything, req).Return(nil, reasoning.NewRateLimitError("azure-openai", "gpt-4o-mini", errors.New("429"), time.Minute))
	r2.On("Complete", mock.Anything, req).Return(nil, reasoning.NewRateLimitError("anthropic", "claude-sonnet-4-5", errors.New("429"), 30*time.Second))

	fr := reasoning.NewFallbackReasoner([]port.Reasoner{r1, r2}, []string{"azure-openai", "anthropic"})

	_, err := fr.Complete(context.Background(), req)

	var rlErr *reasoning.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "all", rlErr.Provider)
	assert.InDelta(t, 30, rlErr.RetryAfter.Seconds(), 1)
}

func TestFallbackReasoner_AllFailed(t *testing.T) {
	r1 := new(mocks.MockReasoner)
	r2 := new(mocks.MockReasoner)
	last := errors.New("bad gateway")
	r1.On("Complete", mock.Anything, req).Return(nil, reasoning.NewRateLimitError("azure-openai", "gpt-4o-mini", errors.New("429"), time.Minute))
	r2.On("Complete", mock.Anything, req).Return(nil, last)

	fr := reasoning.NewFallbackReasoner([]port.Reasoner{r1, r2}, []string{"azure-openai", "anthropic"})

	_, err := fr.Complete(context.Background(), req)

	require.Error(t, err)
	assert.ErrorIs(t, err, last)
	var rlErr *reasoning.RateLimitError
	assert.False(t, errors.As(err, &rlErr))
}
