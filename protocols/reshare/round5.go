package reshare

import (
	"fmt"
	"time"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/paillier"
	"github.com/vaultmesh/threshold-ecdsa/internal/ridkey"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/internal/zkp"
	"github.com/vaultmesh/threshold-ecdsa/party"
	"github.com/vaultmesh/threshold-ecdsa/protocols/keygen"
)

// round5 is the second acknowledgement round: having verified every peer's
// round-4 digest matched its own, each new-committee member broadcasts a
// final confirmation before anyone finalizes its new LocalKey, so that a
// member who silently failed to reach round 4 (and so never had the chance
// to object) cannot cause the rest of the committee to finalize without it
// (spec.md §4.J, "two ack rounds finalize").
type round5 struct {
	r4 *round4

	received map[party.Index]struct{}
}

func newRound5(r4 *round4) *round5 {
	return &round5{r4: r4, received: map[party.Index]struct{}{}}
}

func (r *round5) Number() int { return 5 }

// Zeroize delegates to round 4, which still holds xNew (via round 3).
func (r *round5) Zeroize() {
	r.r4.Zeroize()
}

func (r *round5) Start() ([]round.Msg[Msg], error) {
	sess := r.r4.r3.r2.r1.sess
	return []round.Msg[Msg]{{
		From: sess.self, Broadcast: true, Round: 5,
		Body: Msg{Ack2: &AckPayload{Digest: r.r4.digest}},
	}}, nil
}

func (r *round5) IsMessageExpected(from party.Index, body Msg) bool {
	return body.Ack2 != nil && containsIndex(r.r4.r3.r2.r1.sess.newCommittee, from)
}

func (r *round5) IsInputComplete() bool {
	return len(r.received) == len(r.r4.r3.r2.r1.sess.newPeers())
}

func (r *round5) Consume(from party.Index, body Msg) error {
	if string(body.Ack2.Digest) != string(r.r4.digest) {
		return fmt.Errorf("reshare round5: %s's final acknowledgement digest diverges from our own", from)
	}
	r.received[from] = struct{}{}
	return nil
}

func (r *round5) Finalize() (round.Transition[Msg, *keygen.LocalKey], error) {
	r3 := r.r4.r3
	sess := r3.r2.r1.sess

	feldmanCopy := make(map[party.Index][]curve.Point, len(r3.newFeldman))
	for k, v := range r3.newFeldman {
		feldmanCopy[k] = v
	}
	paillierPK := make(map[party.Index]*paillier.PublicKey, len(r3.r2.paillierPK))
	for k, v := range r3.r2.paillierPK {
		paillierPK[k] = v
	}
	setups := make(map[party.Index]zkp.PublicSetup, len(r3.r2.setups))
	for k, v := range r3.r2.setups {
		setups[k] = v
	}

	rid, err := ridkey.New()
	if err != nil {
		return round.Transition[Msg, *keygen.LocalKey]{}, fmt.Errorf("reshare round5: sampling new chain-key: %w", err)
	}

	key := &keygen.LocalKey{
		Self:       sess.self,
		Params:     sess.newParams,
		Committee:  append([]party.Index(nil), sess.newCommittee...),
		ShareXi:    r3.xNew,
		PublicKey:  r3.newAggregate[0],
		FeldmanC:   feldmanCopy,
		PaillierSK: r3.r2.paillier,
		PaillierPK: paillierPK,
		Setups:     setups,
		ChainKey:   rid,
	}
	return round.ToFinal[Msg, *keygen.LocalKey](key), nil
}

func (r *round5) Timeout() time.Duration { return 0 }

func (r *round5) TimeoutOutcome() round.Transition[Msg, *keygen.LocalKey] {
	return round.ToFault[Msg, *keygen.LocalKey](round.NewFault(fmt.Errorf("reshare round5: timed out waiting for final acknowledgements")))
}
