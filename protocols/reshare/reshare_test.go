package reshare_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/internal/testutil"
	"github.com/vaultmesh/threshold-ecdsa/party"
	"github.com/vaultmesh/threshold-ecdsa/protocols/keygen"
	"github.com/vaultmesh/threshold-ecdsa/protocols/reshare"
	"github.com/vaultmesh/threshold-ecdsa/protocols/sign"
)

func scalarFromHash(h [32]byte) curve.Scalar {
	return curve.NewScalarFromBigInt(new(big.Int).SetBytes(h[:]))
}

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

// TestReshareGrowsCommitteeAndPreservesPublicKey takes a (t=1,n=3) key,
// reshares it onto a disjoint-ish (t'=2,n'=5) committee that overlaps in one
// member ("alice"), and checks every new member ends up with a share of the
// same group public key. The redealing quorum ("alice","carol") skips "bob",
// the middle member of the original alphabetical committee ("alice","bob",
// "carol"): carol's original keygen index is 3, but she'd be index 2 if the
// quorum were (mis)numbered by its own subset order, so this exercises
// Lagrange interpolation at each dealer's true original index rather than a
// fresh renumbering of the quorum.
func TestReshareGrowsCommitteeAndPreservesPublicKey(t *testing.T) {
	oldCommitteeAll := []party.Index{"alice", "bob", "carol"}
	oldParams, err := party.NewParameters(2, 3)
	require.NoError(t, err)
	oldKeys := runKeygen(t, oldCommitteeAll, oldParams)

	oldDealers := []party.Index{"alice", "carol"} // skips "bob"; oldParams.Signers() == 2
	newCommittee := []party.Index{"alice", "dave", "erin", "frank", "grace"}
	newParams, err := party.NewParameters(3, 5)
	require.NoError(t, err)

	allParties := map[party.Index]struct{}{}
	for _, id := range oldDealers {
		allParties[id] = struct{}{}
	}
	for _, id := range newCommittee {
		allParties[id] = struct{}{}
	}

	drivers := make(map[party.Index]*round.Driver[reshare.Msg, *keygen.LocalKey], len(allParties))
	for id := range allParties {
		var oldKey *keygen.LocalKey
		if k, ok := oldKeys[id]; ok {
			oldKey = k
		}
		d, err := reshare.New(id, oldKey, oldDealers, newCommittee, newParams, nil)
		require.NoError(t, err)
		drivers[id] = d
	}
	require.NoError(t, testutil.Run(drivers))

	oldY := oldKeys["alice"].PublicKey
	newKeys := make(map[party.Index]*keygen.LocalKey)
	for id, d := range drivers {
		require.Nil(t, d.Err(), "party %s faulted", id)
		result, ok := d.Result()
		require.True(t, ok)
		if result == nil {
			continue // old-only dealer: "carol" never joined the new committee
		}
		newKeys[id] = result
	}
	require.Len(t, newKeys, len(newCommittee))
	for id, k := range newKeys {
		require.True(t, k.PublicKey.Equal(oldY), "party %s's new public key diverges from the pre-reshare key", id)
		require.Equal(t, newParams, k.Params)
	}

	// The new committee should be able to sign with its freshly dealt shares.
	signers := []party.Index{"alice", "dave", "erin"}
	drivers2 := make(map[party.Index]*round.Driver[sign.Msg, sign.Signature], len(signers))
	msgHash := [32]byte{1, 2, 3}
	for _, id := range signers {
		d, err := sign.New(id, newKeys[id], signers, msgHash, nil)
		require.NoError(t, err)
		drivers2[id] = d
	}
	require.NoError(t, testutil.Run(drivers2))
	for id, d := range drivers2 {
		require.Nil(t, d.Err(), "signer %s faulted", id)
		sig, ok := d.Result()
		require.True(t, ok)
		require.True(t, sig.Verify(oldY, scalarFromHash(msgHash)))
	}
}
