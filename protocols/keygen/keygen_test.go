package keygen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/internal/testutil"
	"github.com/vaultmesh/threshold-ecdsa/party"
	"github.com/vaultmesh/threshold-ecdsa/protocols/keygen"
)

func runKeygen(t *testing.T, committee []party.Index, params party.Parameters) map[party.Index]*keygen.LocalKey {
	t.Helper()

	drivers := make(map[party.Index]*round.Driver[keygen.Msg, keygen.LocalKey], len(committee))
	for _, id := range committee {
		d, err := keygen.New(id, committee, params, nil)
		require.NoError(t, err)
		drivers[id] = d
	}
	require.NoError(t, testutil.Run(drivers))

	keys := make(map[party.Index]*keygen.LocalKey, len(committee))
	for id, d := range drivers {
		require.Nil(t, d.Err(), "party %s faulted", id)
		result, ok := d.Result()
		require.True(t, ok, "party %s has no result", id)
		k := result
		keys[id] = &k
	}
	return keys
}

func TestKeygenTwoOfThreeAgreesOnPublicKey(t *testing.T) {
	committee := []party.Index{"alice", "bob", "carol"}
	params, err := party.NewParameters(2, 3)
	require.NoError(t, err)

	keys := runKeygen(t, committee, params)
	require.Len(t, keys, 3)

	var want *keygen.LocalKey
	for _, id := range committee {
		k := keys[id]
		require.Equal(t, id, k.Self)
		require.False(t, k.ShareXi.IsZero())
		if want == nil {
			want = k
			continue
		}
		require.True(t, k.PublicKey.Equal(want.PublicKey), "party %s disagrees on the group public key", id)
		require.Equal(t, want.ChainKey, k.ChainKey)
	}
}

func TestKeygenRejectsSelfOutsideCommittee(t *testing.T) {
	committee := []party.Index{"alice", "bob", "carol"}
	params, err := party.NewParameters(2, 3)
	require.NoError(t, err)

	_, err = keygen.New("mallory", committee, params, nil)
	require.Error(t, err)
}

func TestKeygenRejectsWrongCommitteeSize(t *testing.T) {
	committee := []party.Index{"alice", "bob"}
	params, err := party.NewParameters(2, 3)
	require.NoError(t, err)

	_, err = keygen.New("alice", committee, params, nil)
	require.Error(t, err)
}
