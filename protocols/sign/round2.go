package sign

import (
	"fmt"
	"time"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/internal/zkp"
	"github.com/vaultmesh/threshold-ecdsa/party"
)

// round2 answers every peer's round-1 MtA-A with two MtA responses: one
// converting k_peer*gamma_self (Phase 2a) and one converting k_peer*w_self
// with the additive-check binding B = w_self*G (Phase 2b / "MtA with
// check", spec.md §4.E). It also decrypts the responses peers send back to
// self's own round-1 MessageA, recovering self's additive shares of
// k_self*gamma_peer and k_self*w_peer.
type round2 struct {
	r1 *round1

	betaGamma map[party.Index]curve.Scalar // self's own additive term, acting as Bob for peer's k*gamma
	nuW       map[party.Index]curve.Scalar // self's own additive term, acting as Bob for peer's k*w

	alphaGamma map[party.Index]curve.Scalar // decrypted from peer's response to self's MessageA
	muW        map[party.Index]curve.Scalar

	received map[party.Index]struct{}
}

func newRound2(r1 *round1) *round2 {
	return &round2{
		r1:         r1,
		betaGamma:  map[party.Index]curve.Scalar{},
		nuW:        map[party.Index]curve.Scalar{},
		alphaGamma: map[party.Index]curve.Scalar{},
		muW:        map[party.Index]curve.Scalar{},
		received:   map[party.Index]struct{}{},
	}
}

func (r *round2) Number() int { return 2 }

func zeroizeScalarMap(m map[party.Index]curve.Scalar) {
	for idx, s := range m {
		s.Zeroize()
		m[idx] = s
	}
}

// Zeroize wipes every MtA additive term this round buffers, plus round 1's.
func (r *round2) Zeroize() {
	zeroizeScalarMap(r.betaGamma)
	zeroizeScalarMap(r.nuW)
	zeroizeScalarMap(r.alphaGamma)
	zeroizeScalarMap(r.muW)
	r.r1.Zeroize()
}

func (r *round2) Start() ([]round.Msg[Msg], error) {
	sess := r.r1.sess
	out := make([]round.Msg[Msg], 0, len(r.r1.receivedMessageA))
	for from, msgA := range r.r1.receivedMessageA {
		alicePK := sess.paillierPK(from)
		aliceSetup := sess.setupOf(from)

		gammaResp, beta, err := zkp.NewMessageB(alicePK, aliceSetup, msgA, r.r1.gamma)
		if err != nil {
			return nil, fmt.Errorf("sign round2: building gamma MtA response for %s: %w", from, err)
		}
		r.betaGamma[from] = beta

		wResp, nu, err := zkp.NewMessageBWithCheck(alicePK, aliceSetup, msgA, sess.wSelf)
		if err != nil {
			return nil, fmt.Errorf("sign round2: building w MtA-with-check response for %s: %w", from, err)
		}
		r.nuW[from] = nu

		out = append(out, round.Msg[Msg]{
			From: sess.self, To: from, Broadcast: false, Round: 2,
			Body: Msg{Round2: &Round2Payload{GammaResponse: &gammaResp, WResponse: &wResp}},
		})
	}
	return out, nil
}

func (r *round2) IsMessageExpected(from party.Index, body Msg) bool {
	return body.Round2 != nil && containsIndex(r.r1.sess.peers(), from)
}

func (r *round2) IsInputComplete() bool {
	return len(r.received) == len(r.r1.sess.peers())
}

func (r *round2) Consume(from party.Index, body Msg) error {
	sess := r.r1.sess
	selfPK := &sess.key.PaillierSK.PublicKey
	selfSetup := sess.setupOf(sess.self)

	gammaResp := *body.Round2.GammaResponse
	if err := gammaResp.Verify(selfPK, selfSetup); err != nil {
		return fmt.Errorf("sign round2: gamma MtA response from %s: %w", from, err)
	}
	alpha, err := zkp.Open(sess.key.PaillierSK, gammaResp)
	if err != nil {
		return fmt.Errorf("sign round2: decrypting gamma MtA response from %s: %w", from, err)
	}
	r.alphaGamma[from] = alpha

	wResp := *body.Round2.WResponse
	if err := wResp.Verify(selfPK, selfSetup); err != nil {
		return fmt.Errorf("sign round2: w MtA-with-check response from %s: %w", from, err)
	}
	expectedB := publicShare(sess.key, sess.lambda[from], from)
	if !wResp.B.Equal(expectedB) {
		return fmt.Errorf("sign round2: w MtA-with-check from %s binds an unexpected public share", from)
	}
	mu, err := zkp.OpenChecked(sess.key.PaillierSK, wResp)
	if err != nil {
		return fmt.Errorf("sign round2: decrypting w MtA-with-check response from %s: %w", from, err)
	}
	r.muW[from] = mu

	r.received[from] = struct{}{}
	return nil
}

func (r *round2) Finalize() (round.Transition[Msg, Signature], error) {
	return round.ToNextRound[Msg, Signature](newRound3(r)), nil
}

func (r *round2) Timeout() time.Duration { return 0 }

func (r *round2) TimeoutOutcome() round.Transition[Msg, Signature] {
	return round.ToFault[Msg, Signature](round.NewFault(fmt.Errorf("sign round2: timed out waiting for MtA responses")))
}
