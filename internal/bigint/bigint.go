// Package bigint collects the constant-time (with respect to secret
// exponents) modular-arithmetic primitives shared by the Paillier and ZK
// packages: modular exponentiation, modular inverse, the Chinese Remainder
// Theorem solver used by the safe-prime / RSA-group sampling routines, and a
// zeroizing wrapper for secret big integers.
//
// The original implementation (see original_source/algorithms/src/utils.rs
// and types.rs) leans on a `Powm::powm_sec` trait method whose own comment
// admits it is "a quick & dirty fix" and not actually constant-time. We do
// not repeat that mistake: every exponentiation here that touches a secret
// exponent goes through github.com/cronokirby/saferith, which is built for
// side-channel-resistant RSA/Paillier-scale arithmetic (this is the same
// library luxfi-threshold vendors for its own constant-time scalar paths).
package bigint

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/cronokirby/saferith"
)

// ErrNotInvertible is returned by ModInverse when x shares a factor with the
// modulus.
var ErrNotInvertible = errors.New("bigint: value has no inverse modulo m")

// bitLen returns a safe over-estimate of the bit length saferith should
// allocate for a value reduced modulo m.
func bitLen(m *big.Int) int {
	return m.BitLen() + 8
}

// ModPow computes base^exp mod m in constant time with respect to exp and
// base. m must be positive and odd-or-even; this is the general-purpose
// entry point used for Paillier decryption and the composite DLog proof,
// where exp is always secret.
func ModPow(base, exp, m *big.Int) *big.Int {
	if m.Sign() <= 0 {
		panic("bigint: ModPow requires a positive modulus")
	}
	cap := bitLen(m)
	modulus := saferith.ModulusFromNat(new(saferith.Nat).SetBig(m, cap))
	b := new(saferith.Nat).SetBig(new(big.Int).Mod(base, m), cap)
	e := new(saferith.Nat).SetBig(exp, exp.BitLen()+8)
	var z saferith.Nat
	z.Exp(b, e, modulus)
	return z.Big()
}

// SignedModPow computes base^exp mod m for a possibly-negative exp, by
// taking base's modular inverse first when exp is negative. Needed by the
// composite DLog proof, whose Fiat-Shamir response y = r - c*s is not
// guaranteed to be non-negative (original_source's BigInt type supports
// signed values natively; math/big's Exp does not accept a negative
// exponent, so we handle the sign explicitly here instead).
func SignedModPow(base, exp, m *big.Int) *big.Int {
	if exp.Sign() >= 0 {
		return ModPow(base, exp, m)
	}
	posExp := new(big.Int).Neg(exp)
	inv := new(big.Int).ModInverse(new(big.Int).Mod(base, m), m)
	if inv == nil {
		// base shares a factor with m; fall back to direct computation so
		// callers at least get a deterministic (if not meaningfully
		// invertible) result rather than a nil pointer.
		return ModPow(base, new(big.Int).Mod(exp, m), m)
	}
	return ModPow(inv, posExp, m)
}

// ModInverse computes x^-1 mod m, returning ErrNotInvertible if gcd(x, m) != 1.
func ModInverse(x, m *big.Int) (*big.Int, error) {
	inv := new(big.Int).ModInverse(x, m)
	if inv == nil {
		return nil, fmt.Errorf("%w: gcd(%s, %s) != 1", ErrNotInvertible, x.String(), m.String())
	}
	return inv, nil
}

// CRT solves the simultaneous congruences x = remainders[i] (mod moduli[i])
// using Gauss's algorithm (Handbook of Applied Cryptography, algorithm
// 2.121), as in original_source's crt_solver. moduli must be pairwise
// coprime; len(remainders) must equal len(moduli) and both must be
// non-empty.
func CRT(remainders, moduli []*big.Int) (*big.Int, error) {
	if len(remainders) == 0 || len(remainders) != len(moduli) {
		return nil, errors.New("bigint: CRT requires equal non-empty remainder/modulus slices")
	}
	n := big.NewInt(1)
	for _, ni := range moduli {
		n.Mul(n, ni)
	}
	result := big.NewInt(0)
	for i, ai := range remainders {
		ni := moduli[i]
		Ni := new(big.Int).Div(n, ni)
		Mi, err := ModInverse(Ni, ni)
		if err != nil {
			return nil, fmt.Errorf("bigint: CRT modulus %d: %w", i, err)
		}
		term := new(big.Int).Mul(ai, Ni)
		term.Mul(term, Mi)
		term.Mod(term, n)
		result.Add(result, term)
	}
	return result.Mod(result, n), nil
}

// SampleBelow returns a uniformly random integer in [0, n).
func SampleBelow(n *big.Int) (*big.Int, error) {
	if n.Sign() <= 0 {
		return nil, errors.New("bigint: SampleBelow requires n > 0")
	}
	return rand.Int(rand.Reader, n)
}

// GeneratorOfCyclicSubgroup samples a generator of the order-pPrime cyclic
// subgroup of Z*_p, where p is prime, pPrime is prime, and pPrime divides
// p-1 (Introduction to Modern Cryptography, 2nd ed., algorithm 8.65), as in
// original_source's sample_generator_of_cyclic_subgroup.
func GeneratorOfCyclicSubgroup(p, pPrime *big.Int) (*big.Int, error) {
	const maxRejectionIterations = 256

	pMinusOne := new(big.Int).Sub(p, big.NewInt(1))
	q, r := new(big.Int).QuoRem(pMinusOne, pPrime, new(big.Int))
	if r.Sign() != 0 {
		return nil, errors.New("bigint: pPrime does not divide p-1")
	}
	one := big.NewInt(1)
	two := big.NewInt(2)
	for i := 0; i < maxRejectionIterations; i++ {
		h, err := SampleBelow(p)
		if err != nil {
			return nil, err
		}
		if h.Cmp(two) < 0 {
			continue
		}
		g := ModPow(h, q, p)
		if g.Cmp(one) == 0 {
			continue
		}
		return g, nil
	}
	return nil, fmt.Errorf("bigint: rejection sampling exceeded %d iterations", maxRejectionIterations)
}

// GeneratorOfRSAGroup samples a generator of the maximal cyclic subgroup of
// Z*_N (order p'q') where N = safeP * safeQ are safe primes, by combining
// generators of the two prime-order subgroups
// via CRT (original_source's sample_generator_of_rsa_group).
func GeneratorOfRSAGroup(safeP, safeQ *big.Int) (*big.Int, error) {
	two := big.NewInt(2)
	pPrime := new(big.Int).Div(new(big.Int).Sub(safeP, big.NewInt(1)), two)
	qPrime := new(big.Int).Div(new(big.Int).Sub(safeQ, big.NewInt(1)), two)

	gP, err := GeneratorOfCyclicSubgroup(safeP, pPrime)
	if err != nil {
		return nil, fmt.Errorf("bigint: subgroup generator mod safeP: %w", err)
	}
	gQ, err := GeneratorOfCyclicSubgroup(safeQ, qPrime)
	if err != nil {
		return nil, fmt.Errorf("bigint: subgroup generator mod safeQ: %w", err)
	}
	return CRT([]*big.Int{gP, gQ}, []*big.Int{safeP, safeQ})
}

// SecretNat is a zeroizable holder for a secret integer (a Paillier lambda,
// an ElGamal-style exponent, ...). Unlike a bare *big.Int, whose backing
// array can be relocated or retained by the allocator across Set/Mod calls,
// SecretNat keeps the value inside a fixed-capacity saferith.Nat so Zeroize
// has a single, stable buffer to overwrite.
type SecretNat struct {
	nat *saferith.Nat
}

// NewSecretNat copies x into a zeroizable holder sized to bits.
func NewSecretNat(x *big.Int, bits int) *SecretNat {
	return &SecretNat{nat: new(saferith.Nat).SetBig(x, bits)}
}

// Big returns the current value as a *big.Int. The caller must not assume
// the returned value is itself zeroized by a later call to Zeroize.
func (s *SecretNat) Big() *big.Int {
	if s.nat == nil {
		return big.NewInt(0)
	}
	return s.nat.Big()
}

// Zeroize overwrites the backing Nat with zero and drops the reference, so
// that Big() after Zeroize returns 0 rather than a stale pointer.
func (s *SecretNat) Zeroize() {
	if s.nat == nil {
		return
	}
	s.nat.SetUint64(0)
	s.nat = nil
}
