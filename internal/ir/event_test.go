package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStringRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindTrigger, KindRequest, KindSuccess, KindFail, KindClear} {
		t.Run(k.String(), func(t *testing.T) {
			parsed, err := ParseKind(k.String())
			require.NoError(t, err)
			assert.Equal(t, k, parsed)
		})
	}

	_, err := ParseKind("bogus")
	require.Error(t, err)
	assert.Equal(t, "kind(0)", Kind(0).String())
}

func TestKindTerminal(t *testing.T) {
	assert.True(t, KindSuccess.Terminal())
	assert.True(t, KindFail.Terminal())
	assert.False(t, KindTrigger.Terminal())
	assert.False(t, KindRequest.Terminal())
	assert.False(t, KindClear.Terminal())
}

func TestEventActionType(t *testing.T) {
	var a Action = Event{Kind: KindRequest, Type: "todos/FETCH/REQUEST"}
	assert.Equal(t, "todos/FETCH/REQUEST", a.ActionType())
}
