package sign_test

import (
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/internal/testutil"
	"github.com/vaultmesh/threshold-ecdsa/party"
	"github.com/vaultmesh/threshold-ecdsa/protocols/keygen"
	"github.com/vaultmesh/threshold-ecdsa/protocols/sign"
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
		require.Nil(t, d.Err())
		result, ok := d.Result()
		require.True(t, ok)
		k := result
		keys[id] = &k
	}
	return keys
}

func TestSignTwoOfThreeProducesValidSignature(t *testing.T) {
	committee := []party.Index{"alice", "bob", "carol"}
	params, err := party.NewParameters(2, 3)
	require.NoError(t, err)
	keys := runKeygen(t, committee, params)

	signers := []party.Index{"alice", "bob"}
	msgHash := sha256.Sum256([]byte("pay carol 5 btc"))

	drivers := make(map[party.Index]*round.Driver[sign.Msg, sign.Signature], len(signers))
	for _, id := range signers {
		d, err := sign.New(id, keys[id], signers, msgHash, nil)
		require.NoError(t, err)
		drivers[id] = d
	}
	require.NoError(t, testutil.Run(drivers))

	var sig sign.Signature
	var got bool
	for id, d := range drivers {
		require.Nil(t, d.Err(), "party %s faulted", id)
		s, ok := d.Result()
		require.True(t, ok)
		sig = s
		got = true
	}
	require.True(t, got)

	Y := keys["alice"].PublicKey
	m := curve.NewScalarFromBigInt(new(big.Int).SetBytes(msgHash[:]))
	require.True(t, sig.Verify(Y, m))
}

func TestSignRejectsWrongCommitteeSize(t *testing.T) {
	committee := []party.Index{"alice", "bob", "carol"}
	params, err := party.NewParameters(2, 3)
	require.NoError(t, err)
	keys := runKeygen(t, committee, params)

	msgHash := sha256.Sum256([]byte("x"))
	_, err = sign.New("alice", keys["alice"], []party.Index{"alice"}, msgHash, nil)
	require.Error(t, err)
}
