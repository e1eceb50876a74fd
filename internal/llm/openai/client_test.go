package openai

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/x7722/mobile-use/internal/llm"
)

type fakeChatClient struct {
	resp openai.ChatCompletionResponse
	err  error
	last openai.ChatCompletionRequest
}

func (f *fakeChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.last = req
	return f.resp, f.err
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(Options{DefaultModel: "gpt-x"})
	require.Error(t, err)
}

func TestNewRequiresDefaultModel(t *testing.T) {
	_, err := New(Options{Client: &fakeChatClient{}})
	require.Error(t, err)
}

func TestSupportsParallelToolCallsIsFalse(t *testing.T) {
	c, err := New(Options{Client: &fakeChatClient{}, DefaultModel: "gpt-x"})
	require.NoError(t, err)
	require.False(t, c.SupportsParallelToolCalls())
}

func TestCompleteTranslatesTextResponse(t *testing.T) {
	fake := &fakeChatClient{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message:      openai.ChatCompletionMessage{Content: "hello there"},
			FinishReason: openai.FinishReasonStop,
		}},
	}}
	c, err := New(Options{Client: fake, DefaultModel: "gpt-x"})
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), &llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Text: "hi"}}})
	require.NoError(t, err)
	require.Equal(t, "hello there", resp.Text)
	require.Equal(t, "gpt-x", fake.last.Model)
}

func TestCompleteRequiresMessages(t *testing.T) {
	c, err := New(Options{Client: &fakeChatClient{}, DefaultModel: "gpt-x"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), &llm.Request{})
	require.Error(t, err)
}

func TestCompleteStructuredOutputEmptyContentErrors(t *testing.T) {
	fake := &fakeChatClient{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: ""}}},
	}}
	c, err := New(Options{Client: fake, DefaultModel: "gpt-x"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), &llm.Request{
		Messages:         []llm.Message{{Role: llm.RoleUser, Text: "hi"}},
		StructuredSchema: []byte(`{"type":"object"}`),
	})
	require.ErrorIs(t, err, llm.ErrStructuredOutputRequired)
}

func TestCompleteWrapsRateLimitError(t *testing.T) {
	fake := &fakeChatClient{err: &openai.APIError{HTTPStatusCode: 429}}
	c, err := New(Options{Client: fake, DefaultModel: "gpt-x"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), &llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Text: "hi"}}})
	require.ErrorIs(t, err, llm.ErrRateLimited)
}

func TestCompletePropagatesNonRateLimitError(t *testing.T) {
	fake := &fakeChatClient{err: errors.New("network blip")}
	c, err := New(Options{Client: fake, DefaultModel: "gpt-x"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), &llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Text: "hi"}}})
	require.Error(t, err)
	require.NotErrorIs(t, err, llm.ErrRateLimited)
}
