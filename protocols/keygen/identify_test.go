package keygen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/vss"
	"github.com/vaultmesh/threshold-ecdsa/party"
	"github.com/vaultmesh/threshold-ecdsa/protocols/keygen"
)

func aggregateOf(t *testing.T, key *keygen.LocalKey) []curve.Point {
	t.Helper()
	perDealer := make([][]curve.Point, 0, len(key.FeldmanC))
	for _, c := range key.FeldmanC {
		perDealer = append(perDealer, c)
	}
	return vss.AggregateCommitments(perDealer)
}

func TestOwnershipProofRoundTrips(t *testing.T) {
	committee := []party.Index{"alice", "bob", "carol"}
	params, err := party.NewParameters(2, 3)
	require.NoError(t, err)
	keys := runKeygen(t, committee, params)

	alice := keys["alice"]
	proof, err := keygen.ProveOwnership(alice)
	require.NoError(t, err)

	aggregate := aggregateOf(t, keys["bob"]) // a different party's view, should agree
	require.NoError(t, keygen.VerifyOwnership(aggregate, alice.Committee, "alice", proof))
}

func TestOwnershipProofRejectsWrongClaimant(t *testing.T) {
	committee := []party.Index{"alice", "bob", "carol"}
	params, err := party.NewParameters(2, 3)
	require.NoError(t, err)
	keys := runKeygen(t, committee, params)

	proof, err := keygen.ProveOwnership(keys["alice"])
	require.NoError(t, err)

	aggregate := aggregateOf(t, keys["bob"])
	err = keygen.VerifyOwnership(aggregate, keys["bob"].Committee, "bob", proof)
	require.Error(t, err)
}
