package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNameRejectsEmptyParts(t *testing.T) {
	_, ok := ParseName("policy//0")
	assert.False(t, ok)
}

func TestParseNameType(t *testing.T) {
	n, ok := ParseName("policy/wazuh/0")
	require.True(t, ok)
	assert.Equal(t, "policy", n.Type())
	assert.True(t, n.HasValidType())
}

func TestNameOrdering(t *testing.T) {
	a, _ := ParseName("filter/a/0")
	b, _ := ParseName("filter/b/0")
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}

func TestParameterParsing(t *testing.T) {
	p := ParseParameter("$x")
	assert.True(t, p.IsReference())
	assert.Equal(t, "x", p.Value)

	lit := ParseParameter("literal")
	assert.False(t, lit.IsReference())
	assert.Equal(t, "literal", lit.Value)
}
