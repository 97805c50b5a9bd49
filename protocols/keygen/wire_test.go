package keygen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultmesh/threshold-ecdsa/party"
	"github.com/vaultmesh/threshold-ecdsa/protocols/keygen"
)

func TestLocalKeyWireRoundTrip(t *testing.T) {
	committee := []party.Index{"alice", "bob", "carol"}
	params, err := party.NewParameters(2, 3)
	require.NoError(t, err)

	keys := runKeygen(t, committee, params)
	original := keys["alice"]

	encoded, err := original.MarshalWire()
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := keygen.UnmarshalWire(encoded)
	require.NoError(t, err)

	require.Equal(t, original.Self, decoded.Self)
	require.Equal(t, original.Params, decoded.Params)
	require.Equal(t, original.Committee, decoded.Committee)
	require.Equal(t, original.ChainKey, decoded.ChainKey)
	require.True(t, decoded.PublicKey.Equal(original.PublicKey))
	require.True(t, decoded.ShareXi.Equal(original.ShareXi))
	require.Equal(t, 0, original.PaillierSK.N.Cmp(decoded.PaillierSK.N))
	require.Equal(t, 0, original.PaillierSK.Lambda.Cmp(decoded.PaillierSK.Lambda))
	require.Equal(t, 0, original.PaillierSK.Mu.Cmp(decoded.PaillierSK.Mu))

	for id, points := range original.FeldmanC {
		decodedPoints, ok := decoded.FeldmanC[id]
		require.True(t, ok, "missing Feldman commitments for %s", id)
		require.Len(t, decodedPoints, len(points))
		for i, p := range points {
			require.True(t, p.Equal(decodedPoints[i]), "Feldman commitment %d for %s diverges", i, id)
		}
	}

	reencoded, err := decoded.MarshalWire()
	require.NoError(t, err)
	require.Equal(t, encoded, reencoded, "re-encoding a decoded LocalKey must be byte-identical (canonical CBOR)")
}
