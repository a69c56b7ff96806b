package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/routingcore/internal/store"
)

func TestParseClauseValid(t *testing.T) {
	clause, err := parseClause("queue: +s_eq/$origin")
	require.NoError(t, err)
	assert.Equal(t, "queue", clause.Target)
	assert.Equal(t, "s_eq", clause.Helper)
	assert.Equal(t, []string{"$origin"}, clause.Args)
}

func TestParseClauseNoArgs(t *testing.T) {
	clause, err := parseClause("queue: +exists")
	require.NoError(t, err)
	assert.Equal(t, "exists", clause.Helper)
	assert.Empty(t, clause.Args)
}

func TestParseClauseRejectsMissingColon(t *testing.T) {
	_, err := parseClause("queue +exists")
	assert.Error(t, err)
}

func TestParseClauseRejectsMissingPlus(t *testing.T) {
	_, err := parseClause("queue: exists")
	assert.Error(t, err)
}

func TestStoreLoaderRoundTrip(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "policies/main.yaml", []byte(`
name: main
stages:
  - name: decoders
    assets: [decoder/json]
`)))
	require.NoError(t, s.Write(ctx, "assets/decoder/json.yaml", []byte(`
name: decoder/json
check:
  - "queue: +exists"
`)))

	loader := &StoreLoader{Store: s}
	policyDoc, err := loader.LoadPolicy(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "main", policyDoc.Name)
	require.Len(t, policyDoc.Stages, 1)
	assert.Equal(t, "decoders", policyDoc.Stages[0].Name)

	assetDoc, err := loader.LoadAsset(ctx, "decoder/json")
	require.NoError(t, err)
	assert.Equal(t, []string{"queue: +exists"}, assetDoc.Check)
}

func TestStoreLoaderMissingPolicyIsNotFound(t *testing.T) {
	s := store.NewMemoryStore()
	loader := &StoreLoader{Store: s}
	_, err := loader.LoadPolicy(context.Background(), "missing")
	assert.Error(t, err)
}
