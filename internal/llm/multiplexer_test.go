package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type fakeClient struct {
	resp *Response
	err  error
}

func (f *fakeClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	return f.resp, f.err
}

func TestCompleteUnknownProfile(t *testing.T) {
	m := NewMultiplexer(map[string]Profile{}, nil)
	_, err := m.Complete(context.Background(), "missing", &Request{})
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestCompleteRetriesFallbackOnRateLimit(t *testing.T) {
	primary := &fakeClient{err: ErrRateLimited}
	fallback := &fakeClient{resp: &Response{Text: "ok"}}
	m := NewMultiplexer(map[string]Profile{
		"main":     {Name: "main", Client: primary, Fallback: "backup"},
		"backup":   {Name: "backup", Client: fallback},
	}, nil)
	resp, err := m.Complete(context.Background(), "main", &Request{})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Text)
}

func TestCompleteDoesNotRetryNonRetriableError(t *testing.T) {
	primary := &fakeClient{err: errors.New("boom")}
	fallback := &fakeClient{resp: &Response{Text: "ok"}}
	m := NewMultiplexer(map[string]Profile{
		"main":   {Name: "main", Client: primary, Fallback: "backup"},
		"backup": {Name: "backup", Client: fallback},
	}, nil)
	_, err := m.Complete(context.Background(), "main", &Request{})
	require.Error(t, err)
	require.NotEqual(t, "ok", err.Error())
}

func TestCompleteRespectsLimiterCancellation(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(0), 0) // never has a token to give
	m := NewMultiplexer(map[string]Profile{
		"main": {Name: "main", Client: &fakeClient{resp: &Response{Text: "ok"}}, Limiter: limiter},
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Complete(ctx, "main", &Request{})
	require.Error(t, err)
}

func TestCompleteAllowsCallWithoutLimiter(t *testing.T) {
	m := NewMultiplexer(map[string]Profile{
		"main": {Name: "main", Client: &fakeClient{resp: &Response{Text: "ok"}}},
	}, nil)
	resp, err := m.Complete(context.Background(), "main", &Request{})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Text)
}

func TestCompleteNoFallbackConfiguredPropagatesError(t *testing.T) {
	primary := &fakeClient{err: ErrStructuredOutputRequired}
	m := NewMultiplexer(map[string]Profile{
		"main": {Name: "main", Client: primary},
	}, nil)
	_, err := m.Complete(context.Background(), "main", &Request{})
	require.ErrorIs(t, err, ErrStructuredOutputRequired)
}
