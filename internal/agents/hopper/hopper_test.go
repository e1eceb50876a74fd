package hopper

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/x7722/mobile-use/internal/llm"
	"github.com/x7722/mobile-use/internal/toolexec"
)

type stubClient struct {
	resp *llm.Response
	err  error
}

func (c *stubClient) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return c.resp, c.err
}

func muxWith(client llm.Client) *llm.Multiplexer {
	return llm.NewMultiplexer(map[string]llm.Profile{
		"hopper": {Name: "hopper", Client: client},
	}, nil)
}

func TestResolveReturnsBestMatch(t *testing.T) {
	client := &stubClient{resp: &llm.Response{
		StructuredOutput: json.RawMessage(`{"reason":"closest name","output":"com.ubercab.eats"}`),
	}}
	a := New(muxWith(client), "hopper", nil)

	pkg, err := a.Resolve(context.Background(), "uber eats", []string{"com.ubercab.eats", "com.spotify.music"})
	require.NoError(t, err)
	require.Equal(t, "com.ubercab.eats", pkg)
}

func TestResolveErrorsWhenNoMatch(t *testing.T) {
	client := &stubClient{resp: &llm.Response{
		StructuredOutput: json.RawMessage(`{"reason":"nothing close","output":""}`),
	}}
	a := New(muxWith(client), "hopper", nil)

	_, err := a.Resolve(context.Background(), "nonexistent app", []string{"com.example"})
	require.Error(t, err)
}

func TestAgentImplementsAppResolver(t *testing.T) {
	var _ toolexec.AppResolver = (*Agent)(nil)
}
