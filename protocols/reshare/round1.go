package reshare

import (
	"fmt"
	"time"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/internal/vss"
	"github.com/vaultmesh/threshold-ecdsa/party"
	"github.com/vaultmesh/threshold-ecdsa/protocols/keygen"
)

// round1 has every old-committee member broadcast the full-committee
// aggregate of the original keygen's Feldman commitments (which it already
// holds locally from that keygen run — every LocalKey.FeldmanC carries
// every original dealer's vector, not just its own), so that new-committee
// members, who never ran the original keygen, obtain the same aggregate
// polynomial commitments needed to verify round 3's fresh deals. Every
// broadcaster computes the same aggregate independently; round 1 only
// needs to confirm they agree, not sum them again (spec.md §4.J round 1).
type round1 struct {
	sess *session

	Y                 curve.Point
	haveY             bool
	oldAggregate      []curve.Point  // this party's locally computed (or first-received) view
	originalCommittee []party.Index // the original keygen's full n-party committee, canonical order
	expectedFrom      []party.Index
	received          map[party.Index]struct{}
}

func newRound1(sess *session) *round1 {
	expected := sess.oldCommittee
	if sess.isOld {
		expected = sess.oldPeers()
	}
	return &round1{
		sess:         sess,
		expectedFrom: expected,
		received:     map[party.Index]struct{}{},
	}
}

func (r *round1) Number() int { return 1 }

func (r *round1) Start() ([]round.Msg[Msg], error) {
	if !r.sess.isOld {
		return nil, nil
	}
	key := r.sess.oldKey
	r.Y = key.PublicKey
	r.haveY = true

	perDealer := make([][]curve.Point, 0, len(key.FeldmanC))
	for _, c := range key.FeldmanC {
		perDealer = append(perDealer, c)
	}
	aggregate := vss.AggregateCommitments(perDealer)
	if !aggregate[0].Equal(key.PublicKey) {
		return nil, fmt.Errorf("reshare round1: %w: local Feldman aggregate does not reconstruct own public key", round.ErrInternalInvariant)
	}
	r.oldAggregate = aggregate
	r.originalCommittee = key.Committee

	yBytes, err := key.PublicKey.CompressedBytes()
	if err != nil {
		return nil, fmt.Errorf("reshare round1: compressing Y: %w", err)
	}
	commitBytes := make([][]byte, len(aggregate))
	for i, c := range aggregate {
		b, err := c.CompressedBytes()
		if err != nil {
			return nil, fmt.Errorf("reshare round1: compressing aggregate commitment %d: %w", i, err)
		}
		commitBytes[i] = b
	}
	original := make([]string, len(key.Committee))
	for i, m := range key.Committee {
		original[i] = string(m)
	}

	return []round.Msg[Msg]{{
		From: r.sess.self, Broadcast: true, Round: 1,
		Body: Msg{Round1: &Round1Payload{YBytes: yBytes, FeldmanCommits: commitBytes, OriginalCommittee: original}},
	}}, nil
}

func (r *round1) IsMessageExpected(from party.Index, body Msg) bool {
	return body.Round1 != nil && containsIndex(r.expectedFrom, from)
}

func (r *round1) IsInputComplete() bool {
	return len(r.received) == len(r.expectedFrom)
}

func (r *round1) Consume(from party.Index, body Msg) error {
	Y, err := curve.PointFromCompressed(body.Round1.YBytes)
	if err != nil {
		return fmt.Errorf("reshare round1: decoding Y from %s: %w", from, err)
	}
	if !r.haveY {
		r.Y = Y
		r.haveY = true
	} else if !Y.Equal(r.Y) {
		return fmt.Errorf("reshare round1: %s broadcast a Y that disagrees with an earlier old-committee member", from)
	}

	commitments := make([]curve.Point, len(body.Round1.FeldmanCommits))
	for i, b := range body.Round1.FeldmanCommits {
		p, err := curve.PointFromCompressed(b)
		if err != nil {
			return fmt.Errorf("reshare round1: decoding Feldman commitment %d from %s: %w", i, from, err)
		}
		commitments[i] = p
	}
	if r.oldAggregate == nil {
		r.oldAggregate = commitments
	} else if !equalCommitments(r.oldAggregate, commitments) {
		return fmt.Errorf("reshare round1: %s's aggregate Feldman commitments disagree with an earlier old-committee member's", from)
	}

	original := make([]party.Index, len(body.Round1.OriginalCommittee))
	for i, m := range body.Round1.OriginalCommittee {
		original[i] = party.Index(m)
	}
	if r.originalCommittee == nil {
		r.originalCommittee = original
	} else if !equalIndices(r.originalCommittee, original) {
		return fmt.Errorf("reshare round1: %s's original committee disagrees with an earlier old-committee member's", from)
	}

	r.received[from] = struct{}{}
	return nil
}

func equalIndices(a, b []party.Index) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalCommitments(a, b []curve.Point) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func (r *round1) Finalize() (round.Transition[Msg, *keygen.LocalKey], error) {
	if r.oldAggregate == nil || r.originalCommittee == nil {
		return round.Transition[Msg, *keygen.LocalKey]{}, fmt.Errorf("reshare round1: %w: no old-committee aggregate commitments collected", round.ErrInternalInvariant)
	}
	if !r.oldAggregate[0].Equal(r.Y) {
		return round.ToFault[Msg, *keygen.LocalKey](round.NewFault(fmt.Errorf("reshare round1: aggregated old Feldman commitments do not reconstruct the broadcast Y"))), nil
	}
	return round.ToNextRound[Msg, *keygen.LocalKey](newRound2(r)), nil
}

func (r *round1) Timeout() time.Duration { return 0 }

func (r *round1) TimeoutOutcome() round.Transition[Msg, *keygen.LocalKey] {
	return round.ToFault[Msg, *keygen.LocalKey](round.NewFault(fmt.Errorf("reshare round1: timed out waiting for old-committee broadcasts")))
}
