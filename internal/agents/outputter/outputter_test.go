package outputter

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/x7722/mobile-use/internal/llm"
	"github.com/x7722/mobile-use/internal/state"
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
		"outputter": {Name: "outputter", Client: client},
	}, nil)
}

func TestExtractReturnsLastThoughtWithoutDeclaredFormat(t *testing.T) {
	a := New(muxWith(&stubClient{}), "outputter", nil)
	s := state.New("goal", 10)
	s.Apply(state.Delta{AgentsThoughts: []string{"first", "final answer"}})

	out, err := a.Extract(context.Background(), s, "", "")
	require.NoError(t, err)
	require.Equal(t, "final answer", out)
}

func TestExtractValidatesDeclaredFormat(t *testing.T) {
	schema := `{"type":"object","required":["price"],"properties":{"price":{"type":"number"}}}`
	client := &stubClient{resp: &llm.Response{StructuredOutput: json.RawMessage(`{"price":12.5}`)}}
	a := New(muxWith(client), "outputter", nil)

	out, err := a.Extract(context.Background(), state.New("goal", 10), schema, "total price")
	require.NoError(t, err)
	require.JSONEq(t, `{"price":12.5}`, out)
}

func TestExtractReturnsEmptyOnValidationFailure(t *testing.T) {
	schema := `{"type":"object","required":["price"],"properties":{"price":{"type":"number"}}}`
	client := &stubClient{resp: &llm.Response{StructuredOutput: json.RawMessage(`{"price":"not a number"}`)}}
	a := New(muxWith(client), "outputter", nil)

	out, err := a.Extract(context.Background(), state.New("goal", 10), schema, "total price")
	require.NoError(t, err)
	require.Equal(t, "", out)
}
