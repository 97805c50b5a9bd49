package reshare

import (
	"fmt"
	"time"

	"github.com/vaultmesh/threshold-ecdsa/internal/hashcommit"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/party"
	"github.com/vaultmesh/threshold-ecdsa/protocols/keygen"
)

const ackDigestLabel = "reshare/ack/new-aggregate"

// round4 is the first of spec.md §4.J's two acknowledgement rounds: every
// new-committee member broadcasts a digest of its locally derived new
// aggregate Feldman commitments, so a member whose view silently diverged
// from the rest (a dropped or corrupted round-3 message that nonetheless
// passed its own local checks) is caught before anyone commits to the new
// key. Old-only members already finished in round 3 and never reach here.
type round4 struct {
	r3 *round3

	digest   []byte
	received map[party.Index][]byte
}

func newRound4(r3 *round3) *round4 {
	return &round4{r3: r3, received: map[party.Index][]byte{}}
}

func (r *round4) Number() int { return 4 }

// Zeroize delegates to round 3, which still holds xNew.
func (r *round4) Zeroize() {
	r.r3.Zeroize()
}

func (r *round4) Start() ([]round.Msg[Msg], error) {
	sess := r.r3.r2.r1.sess
	transcript := make([][]byte, 0, len(r.r3.newAggregate))
	for _, c := range r.r3.newAggregate {
		b, err := c.CompressedBytes()
		if err != nil {
			return nil, fmt.Errorf("reshare round4: compressing new aggregate commitment: %w", err)
		}
		transcript = append(transcript, b)
	}
	digest := make([]byte, hashcommit.Size)
	if err := hashcommit.FixedChallenge(digest, ackDigestLabel, transcript...); err != nil {
		return nil, fmt.Errorf("reshare round4: deriving digest: %w", err)
	}
	r.digest = digest

	return []round.Msg[Msg]{{
		From: sess.self, Broadcast: true, Round: 4,
		Body: Msg{Ack1: &AckPayload{Digest: digest}},
	}}, nil
}

func (r *round4) IsMessageExpected(from party.Index, body Msg) bool {
	return body.Ack1 != nil && containsIndex(r.r3.r2.r1.sess.newCommittee, from)
}

func (r *round4) IsInputComplete() bool {
	return len(r.received) == len(r.r3.r2.r1.sess.newPeers())
}

func (r *round4) Consume(from party.Index, body Msg) error {
	r.received[from] = body.Ack1.Digest
	return nil
}

func (r *round4) Finalize() (round.Transition[Msg, *keygen.LocalKey], error) {
	for from, digest := range r.received {
		if string(digest) != string(r.digest) {
			return round.ToFault[Msg, *keygen.LocalKey](round.NewFault(fmt.Errorf("reshare round4: %s's new-aggregate digest diverges from our own, resharing view is inconsistent", from))), nil
		}
	}
	return round.ToNextRound[Msg, *keygen.LocalKey](newRound5(r)), nil
}

func (r *round4) Timeout() time.Duration { return 0 }

func (r *round4) TimeoutOutcome() round.Transition[Msg, *keygen.LocalKey] {
	return round.ToFault[Msg, *keygen.LocalKey](round.NewFault(fmt.Errorf("reshare round4: timed out waiting for acknowledgements")))
}
