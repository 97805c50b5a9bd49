package sign

import (
	"go.uber.org/zap"

	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/party"
	"github.com/vaultmesh/threshold-ecdsa/protocols/keygen"
)

// Driver drives one local party's signing session to completion.
type Driver = round.Driver[Msg, Signature]

// New starts a signing session for self, reusing the key material in key,
// over the given committee (exactly key.Params.Signers() members drawn from
// key.Committee) against the 32-byte message digest msgHash.
func New(self party.Index, key *keygen.LocalKey, committee []party.Index, msgHash [32]byte, logger *zap.Logger) (*Driver, error) {
	sess, err := newSession(self, key, committee, msgHash)
	if err != nil {
		return nil, err
	}
	return round.NewDriver[Msg, Signature](self, newRound1(sess), logger)
}
