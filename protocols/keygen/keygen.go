package keygen

import (
	"errors"

	"go.uber.org/zap"

	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/party"
)

// Driver drives one local party's keygen session to completion.
type Driver = round.Driver[Msg, LocalKey]

// New starts a keygen session for self within committee, under params.
// committee must contain every party that will hold a share (spec.md §3:
// keygen always runs over the full n-party set, unlike signing's t+1-party
// committee).
func New(self party.Index, committee []party.Index, params party.Parameters, logger *zap.Logger) (*Driver, error) {
	if len(committee) != params.ShareCount() {
		return nil, errors.New("keygen: committee size must equal params.ShareCount()")
	}
	found := false
	for _, m := range committee {
		if m == self {
			found = true
			break
		}
	}
	if !found {
		return nil, errors.New("keygen: self is not a member of committee")
	}
	ordered := party.IDs(committee)
	return round.NewDriver[Msg, LocalKey](self, newRound1(self, ordered, params), logger)
}
