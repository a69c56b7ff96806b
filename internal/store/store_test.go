package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreReadWrite(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Read(ctx, RouterTablePath)
	assert.Error(t, err)

	require.NoError(t, s.Write(ctx, RouterTablePath, []byte(`[]`)))
	data, err := s.Read(ctx, RouterTablePath)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

func TestFileStoreList(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "router/router/0", []byte(`[]`)))
	require.NoError(t, s.Write(ctx, "router/tester/0", []byte(`[]`)))

	paths, err := s.List(ctx, "router")
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestFileStoreWatchDetectsRealChanges(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Write(ctx, RouterTablePath, []byte(`[]`)))
	changes, err := s.Watch(ctx, RouterTablePath)
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, RouterTablePath, []byte(`[{"name":"a"}]`)))

	select {
	case ch := <-changes:
		assert.Equal(t, RouterTablePath, ch.Path)
		assert.NotEmpty(t, ch.Checksum)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change notification")
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "router/router/0", []byte(`[]`)))
	data, err := s.Read(ctx, "router/router/0")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}
