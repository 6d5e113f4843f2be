package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentifier_DistanceIsSymmetric(t *testing.T) {
	a := IdentifierFromString("a")
	b := IdentifierFromString("b")

	require.Equal(t, a.Distance(b).String(), b.Distance(a).String())
}

func TestIdentifier_DistanceToSelfIsZero(t *testing.T) {
	a := IdentifierFromString("a")
	require.Equal(t, "0", a.Distance(a).String())
}

func TestIdentifier_CloserToOrdersByXORDistance(t *testing.T) {
	target := IdentifierFromBytes([]byte{8})
	near := IdentifierFromBytes([]byte{9})  // distance 1
	far := IdentifierFromBytes([]byte{6})   // distance 14

	require.True(t, CloserTo(target, near, far))
	require.False(t, CloserTo(target, far, near))
}

func TestIdentifier_HexRoundTrip(t *testing.T) {
	id := IdentifierFromString("some-address:1234")

	parsed, ok := IdentifierFromHex(id.String())
	require.True(t, ok)
	require.True(t, id.Equal(parsed))
}

func TestIdentifier_JSONRoundTrip(t *testing.T) {
	id := IdentifierFromString("some-address:1234")

	data, err := json.Marshal(id)
	require.NoError(t, err)

	var out Identifier
	require.NoError(t, json.Unmarshal(data, &out))
	require.True(t, id.Equal(out))
}

func TestIdentifier_EqualIsReflexiveAndDistinguishesDifferentValues(t *testing.T) {
	a := IdentifierFromString("a")
	b := IdentifierFromString("b")

	require.True(t, a.Equal(a))
	require.False(t, a.Equal(b))
}
