package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func tree() []*Element {
	return []*Element{
		{ResourceID: "header", Text: "Home"},
		{
			ResourceID: "list",
			Children: []*Element{
				{ResourceID: "item", Text: "Coffee", BoundsRaw: "[0,0][10,10]"},
				{ResourceID: "item", Text: "Tea", BoundsRaw: "[0,10][10,20]"},
			},
		},
	}
}

func TestFindByResourceIDIndexed(t *testing.T) {
	els := tree()
	first := FindByResourceID(els, "item", nil)
	require.NotNil(t, first)
	require.Equal(t, "Coffee", first.Text)

	idx1 := 1
	second := FindByResourceID(els, "item", &idx1)
	require.NotNil(t, second)
	require.Equal(t, "Tea", second.Text)
}

func TestFindByTextCaseInsensitive(t *testing.T) {
	els := tree()
	found := FindByText(els, "coffee", nil)
	require.NotNil(t, found)
	require.Equal(t, "item", found.ResourceID)
}

func TestFindByResourceIDNotFound(t *testing.T) {
	require.Nil(t, FindByResourceID(tree(), "missing", nil))
}
