// ZkpPublicSetup is the (N~, h1, h2) commitment parameter triple each party
// publishes during keygen (spec.md §4.E / original_source's
// messages.rs::Phase1Broadcast.range_proof_setup field, typed
// Option<ZkpPublicSetup>), used as the Pedersen-style commitment modulus for
// every subsequent range proof in the signing protocol's MtA exchange.
package zkp

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/vaultmesh/threshold-ecdsa/internal/bigint"
	"github.com/vaultmesh/threshold-ecdsa/internal/safeprime"
)

// PublicSetupBits is the bit length of the safe-prime modulus N~ underlying
// every party's range-proof commitment parameters (original_source's
// config.rs::DEFAULT_SAFE_PRIME_BIT_LENGTH covers one prime; N~ is the
// product of two, matching DEFAULT_GROUP_ORDER_BIT_LENGTH).
const PublicSetupBits = 2048

// PublicSetup is the public half of a party's range-proof commitment
// parameters: a safe biprime N~ and two generators h1, h2 of its RSA group,
// such that h2 = h1^alpha mod N~ for a secret alpha only the generating
// party knows.
type PublicSetup struct {
	NTilde *big.Int
	H1     *big.Int
	H2     *big.Int
	Link   CompositeDLogProof // proves knowledge of alpha s.t. H2 = H1^alpha
}

// GenerateSetup builds a fresh PublicSetup: two safe primes p~, q~ forming
// N~, a generator h1 of the maximal cyclic subgroup of Z*_N~ sampled via
// CRT over the two prime-order
// subgroups (original_source's sample_generator_of_rsa_group), a secret
// exponent alpha, and h2 = h1^alpha mod N~ together with a composite-DLog
// proof that the relation holds.
func GenerateSetup(ctx context.Context) (PublicSetup, error) {
	pPair, err := safeprime.Generate(ctx, PublicSetupBits/2)
	if err != nil {
		return PublicSetup{}, fmt.Errorf("zkp: generating safe prime p~: %w", err)
	}
	qPair, err := safeprime.Generate(ctx, PublicSetupBits/2)
	if err != nil {
		return PublicSetup{}, fmt.Errorf("zkp: generating safe prime q~: %w", err)
	}
	if pPair.P.Cmp(qPair.P) == 0 {
		return PublicSetup{}, errors.New("zkp: sampled identical safe primes for N~, retry")
	}

	nTilde := new(big.Int).Mul(pPair.P, qPair.P)
	h1, err := bigint.GeneratorOfRSAGroup(pPair.P, qPair.P)
	if err != nil {
		return PublicSetup{}, fmt.Errorf("zkp: sampling h1 generator: %w", err)
	}

	phiNTilde := new(big.Int).Mul(
		new(big.Int).Sub(pPair.P, big.NewInt(1)),
		new(big.Int).Sub(qPair.P, big.NewInt(1)),
	)
	alphaBig, err := bigint.SampleBelow(phiNTilde)
	if err != nil {
		return PublicSetup{}, err
	}
	alpha := bigint.NewSecretNat(alphaBig, phiNTilde.BitLen()+1)
	defer alpha.Zeroize()

	h2 := bigint.ModPow(h1, alpha.Big(), nTilde)
	link := ProveCompositeDLog(nTilde, h1, h2, alpha.Big(), phiNTilde.BitLen())

	return PublicSetup{NTilde: nTilde, H1: h1, H2: h2, Link: link}, nil
}

// Verify checks the linking proof that H2 is H1 raised to some secret power
// mod NTilde, so a later range-proof verifier can trust the commitment
// parameters were not engineered to hide a trapdoor.
func (s PublicSetup) Verify() error {
	if s.NTilde == nil || s.H1 == nil || s.H2 == nil {
		return errors.New("zkp: incomplete public setup")
	}
	if s.H1.Cmp(big.NewInt(1)) <= 0 || s.H2.Cmp(big.NewInt(1)) <= 0 {
		return errors.New("zkp: public setup generators must exceed 1")
	}
	if !s.Link.Verify(s.NTilde, s.H1, s.H2) {
		return fmt.Errorf("zkp: public setup linking proof: %w", ErrInvalidProof)
	}
	return nil
}

// CommitExponent computes h1^x * h2^r mod NTilde, the Pedersen-style
// commitment used inside the range proofs below.
func (s PublicSetup) CommitExponent(x, r *big.Int) *big.Int {
	a := bigint.ModPow(s.H1, x, s.NTilde)
	b := bigint.ModPow(s.H2, r, s.NTilde)
	return new(big.Int).Mod(new(big.Int).Mul(a, b), s.NTilde)
}
