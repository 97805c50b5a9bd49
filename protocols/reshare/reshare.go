package reshare

import (
	"go.uber.org/zap"

	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/party"
	"github.com/vaultmesh/threshold-ecdsa/protocols/keygen"
)

// Driver drives one local party's resharing session to completion. Its
// Result is nil for an old-committee member that is not also a member of
// the new committee: it dealt its share and has nothing further to hold.
type Driver = round.Driver[Msg, *keygen.LocalKey]

// New starts a resharing session for self. oldKey is self's LocalKey from
// the prior epoch (required iff self is a member of oldCommittee);
// oldCommittee is the subset of old-epoch parties dealing the reshare
// (exactly oldKey.Params.Signers() members who agree to participate), and
// newCommittee/newParams describe the target (t',n') committee.
func New(self party.Index, oldKey *keygen.LocalKey, oldCommittee, newCommittee []party.Index, newParams party.Parameters, logger *zap.Logger) (*Driver, error) {
	sess, err := newSession(self, oldKey, oldCommittee, newCommittee, newParams)
	if err != nil {
		return nil, err
	}
	return round.NewDriver[Msg, *keygen.LocalKey](self, newRound1(sess), logger)
}
