package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/routingcore/internal/document"
	"github.com/99souls/routingcore/internal/expr"
)

func okTerm(name string) *expr.Term {
	return expr.NewTerm(name, func(ev *document.Event) document.Result { return document.Success(ev) })
}

func TestIngestPublishesToSubscribers(t *testing.T) {
	c := New(okTerm("root"), map[string]struct{}{"decoder/json": {}}, "deadbeef")
	sub := c.Subscribe(4)
	defer sub.Close()

	res, err := c.Ingest(document.New())
	require.NoError(t, err)
	assert.True(t, res.OK)

	select {
	case got := <-sub.C():
		assert.True(t, got.OK)
	case <-time.After(time.Second):
		t.Fatal("expected a published result")
	}
	assert.Equal(t, uint64(1), c.Stats().Ingested)
}

func TestIngestAfterStopFails(t *testing.T) {
	c := New(okTerm("root"), nil, "hash")
	c.Stop()
	_, err := c.Ingest(document.New())
	assert.Error(t, err)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	c := New(okTerm("root"), nil, "hash")
	sub := c.Subscribe(1)
	c.Unsubscribe(sub)
	_, open := <-sub.C()
	assert.False(t, open)
}

func TestSubscriberDropsWhenFull(t *testing.T) {
	c := New(okTerm("root"), nil, "hash")
	sub := c.Subscribe(1)
	defer sub.Close()

	_, err := c.Ingest(document.New())
	require.NoError(t, err)
	_, err = c.Ingest(document.New())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), c.Stats().Dropped)
}
