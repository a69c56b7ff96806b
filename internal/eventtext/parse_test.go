package eventtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlainMessage(t *testing.T) {
	ev, err := Parse("1:agent-01:hello world")
	require.NoError(t, err)
	q, _ := ev.GetString("/queue")
	o, _ := ev.GetString("/origin")
	m, _ := ev.GetString("/message")
	assert.Equal(t, "1", q)
	assert.Equal(t, "agent-01", o)
	assert.Equal(t, "hello world", m)
}

func TestParseJSONPassthrough(t *testing.T) {
	ev, err := Parse(`2:agent-02:{"syscheck":{"path":"/etc/passwd"}}`)
	require.NoError(t, err)
	data, ok := ev.GetObject("/data")
	require.True(t, ok)
	assert.Contains(t, data, "syscheck")
}

func TestParseRejectsMissingLocation(t *testing.T) {
	_, err := Parse("1nolocation")
	assert.Error(t, err)
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)
}
