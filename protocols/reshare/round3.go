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

// round3 has every old-committee member deal a fresh (t',n') VSS of its
// Lagrange-adjusted old share to the new committee; new-committee members
// sum the dealt shares into their new share and verify each dealer's
// declared constant term against that dealer's old, publicly known
// weighted share (spec.md §4.J round 3). Old-only members (not also in the
// new committee) have nothing further to do once dealt and drop out here.
type round3 struct {
	r2 *round2

	selfDealtShare curve.Scalar // valid only if sess.isOld && sess.isNew

	newFeldman   map[party.Index][]curve.Point // keyed by dealer (an old-committee member)
	newAggregate []curve.Point
	xNew         curve.Scalar

	received map[party.Index]Round3Payload
}

func newRound3(r2 *round2) *round3 {
	return &round3{r2: r2, newFeldman: map[party.Index][]curve.Point{}, received: map[party.Index]Round3Payload{}}
}

func (r *round3) Number() int { return 3 }

// Zeroize wipes the fresh share this round deals and the recombined new
// share xNew, plus round 2's.
func (r *round3) Zeroize() {
	r.selfDealtShare.Zeroize()
	r.xNew.Zeroize()
	r.r2.Zeroize()
}

func (r *round3) Start() ([]round.Msg[Msg], error) {
	sess := r.r2.r1.sess
	if !sess.isOld {
		return nil, nil
	}

	lambda := lagrangeCoefficients(sess.oldCommittee, r.r2.r1.originalCommittee)[sess.self]
	w := lambda.Mul(sess.oldKey.ShareXi)

	poly, err := vss.NewPolynomial(sess.newParams.Threshold(), w)
	if err != nil {
		return nil, fmt.Errorf("reshare round3: building fresh polynomial: %w", err)
	}
	commits := poly.Commitments()
	commitBytes := make([][]byte, len(commits))
	for i, c := range commits {
		b, err := c.CompressedBytes()
		if err != nil {
			return nil, fmt.Errorf("reshare round3: compressing fresh commitment %d: %w", i, err)
		}
		commitBytes[i] = b
	}

	out := make([]round.Msg[Msg], 0, len(sess.newCommittee))
	for _, recipient := range sess.newCommittee {
		idx := committeeIndex(sess.newCommittee, recipient)
		share := poly.Evaluate(idx)
		if recipient == sess.self {
			r.selfDealtShare = share
			r.newFeldman[sess.self] = commits
			continue
		}
		out = append(out, round.Msg[Msg]{
			From: sess.self, To: recipient, Broadcast: false, Round: 3,
			Body: Msg{Round3: &Round3Payload{FeldmanCommits: commitBytes, ShareValue: share.Bytes()}},
		})
	}
	return out, nil
}

func (r *round3) IsMessageExpected(from party.Index, body Msg) bool {
	sess := r.r2.r1.sess
	return sess.isNew && body.Round3 != nil && containsIndex(sess.oldCommittee, from)
}

func (r *round3) IsInputComplete() bool {
	sess := r.r2.r1.sess
	if !sess.isNew {
		return true
	}
	expected := len(sess.oldCommittee)
	if sess.isOld {
		expected--
	}
	return len(r.received) == expected
}

func (r *round3) Consume(from party.Index, body Msg) error {
	sess := r.r2.r1.sess
	commitments := make([]curve.Point, len(body.Round3.FeldmanCommits))
	for i, b := range body.Round3.FeldmanCommits {
		p, err := curve.PointFromCompressed(b)
		if err != nil {
			return fmt.Errorf("reshare round3: decoding fresh commitment %d from %s: %w", i, from, err)
		}
		commitments[i] = p
	}
	share := vss.Share{
		Index: committeeIndex(sess.newCommittee, sess.self),
		Value: curve.NewScalarFromBigInt(bigIntFromBytes(body.Round3.ShareValue)),
	}
	if err := vss.VerifyShare(share, commitments); err != nil {
		return fmt.Errorf("reshare round3: dealt share from %s: %w", from, err)
	}

	lambda := lagrangeCoefficients(sess.oldCommittee, r.r2.r1.originalCommittee)[from]
	expectedConstant := vss.EvaluateCommitments(r.r2.r1.oldAggregate, committeeIndex(r.r2.r1.originalCommittee, from)).Mul(lambda)
	if !commitments[0].Equal(expectedConstant) {
		return fmt.Errorf("reshare round3: dealer %s's fresh constant term does not match its Lagrange-adjusted old share", from)
	}

	r.newFeldman[from] = commitments
	r.received[from] = *body.Round3
	return nil
}

func (r *round3) Finalize() (round.Transition[Msg, *keygen.LocalKey], error) {
	sess := r.r2.r1.sess
	if !sess.isNew {
		return round.ToFinal[Msg, *keygen.LocalKey](nil), nil
	}

	xNew := r.selfDealtShare
	for _, payload := range r.received {
		xNew = xNew.Add(curve.NewScalarFromBigInt(bigIntFromBytes(payload.ShareValue)))
	}
	r.xNew = xNew

	perDealer := make([][]curve.Point, 0, len(r.newFeldman))
	for _, c := range r.newFeldman {
		perDealer = append(perDealer, c)
	}
	r.newAggregate = vss.AggregateCommitments(perDealer)
	if !r.newAggregate[0].Equal(r.r2.r1.Y) {
		return round.ToFault[Msg, *keygen.LocalKey](round.NewFault(fmt.Errorf("reshare round3: new aggregate commitments do not reconstruct the old group public key Y"))), nil
	}

	selfXNew := xNew.ActOnBase()
	expectedSelf := vss.EvaluateCommitments(r.newAggregate, committeeIndex(sess.newCommittee, sess.self))
	if !selfXNew.Equal(expectedSelf) {
		return round.ToFault[Msg, *keygen.LocalKey](round.NewFault(fmt.Errorf("reshare round3: own new share does not match the new aggregate commitments"))), nil
	}

	return round.ToNextRound[Msg, *keygen.LocalKey](newRound4(r)), nil
}

func (r *round3) Timeout() time.Duration { return 0 }

func (r *round3) TimeoutOutcome() round.Transition[Msg, *keygen.LocalKey] {
	return round.ToFault[Msg, *keygen.LocalKey](round.NewFault(fmt.Errorf("reshare round3: timed out waiting for fresh deals")))
}
