package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRegistryCompilesCatalog(t *testing.T) {
	reg, err := NewRegistry(Catalog())
	require.NoError(t, err)
	require.Len(t, reg.Specs(), len(Catalog()))
}

func TestNewRegistryRejectsMalformedSchema(t *testing.T) {
	_, err := NewRegistry([]Spec{{Name: "bad", Schema: []byte(`not json`)}})
	require.Error(t, err)
}

func TestValidateAcceptsWellFormedArgs(t *testing.T) {
	reg, err := NewRegistry(Catalog())
	require.NoError(t, err)

	err = reg.Validate(context.Background(), "tap", map[string]any{"resource_id": "com.app:id/button"})
	require.NoError(t, err)
}

func TestValidateRejectsUnknownField(t *testing.T) {
	reg, err := NewRegistry(Catalog())
	require.NoError(t, err)

	err = reg.Validate(context.Background(), "tap", map[string]any{"bogus": true})
	require.Error(t, err)
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	reg, err := NewRegistry(Catalog())
	require.NoError(t, err)

	err = reg.Validate(context.Background(), "launch_app", map[string]any{})
	require.Error(t, err)
}

func TestValidateUnknownTool(t *testing.T) {
	reg, err := NewRegistry(Catalog())
	require.NoError(t, err)

	err = reg.Validate(context.Background(), "does_not_exist", map[string]any{})
	require.Error(t, err)
}
