// Package safeprime generates safe primes (p such that (p-1)/2 is also
// prime) of a given bit length, as required by the composite-DLog ZK setup
// (spec.md §4.D); Paillier key generation uses ordinary primes instead. Candidates are pre-filtered with a
// cheap trial-division sieve before the expensive Miller-Rabin rounds, the
// way the reference pack's kisdex-mpc-lib depends on github.com/otiai10/primes
// for exactly this kind of small-prime bookkeeping.
package safeprime

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/otiai10/primes"
)

// MillerRabinRounds is the number of Miller-Rabin iterations run against
// every sieve-surviving candidate, chosen to push the probability of a false
// positive below 2^-80 for the bit lengths used here ((*big.Int).ProbablyPrime
// already composes multiple bases per round; see (*big.Int).ProbablyPrime).
const MillerRabinRounds = 40

// sieveBound is the largest small prime trial-divided against each
// candidate before Miller-Rabin is attempted. Chosen generously enough to
// reject the large majority of composite candidates cheaply.
const sieveBound = 1 << 16

var smallPrimes = sievePrimes()

func sievePrimes() []*big.Int {
	ps := primes.Sieve(sieveBound)
	out := make([]*big.Int, 0, len(ps))
	for _, p := range ps {
		out = append(out, big.NewInt(int64(p)))
	}
	return out
}

// ErrGenerationFailed is returned when ctx is cancelled before a safe prime
// is found; the search itself has no attempt limit.
var ErrGenerationFailed = errors.New("safeprime: generation cancelled before a candidate was found")

// Pair is a safe prime p together with its Sophie Germain prime q = (p-1)/2.
type Pair struct {
	P *big.Int
	Q *big.Int
}

// Generate searches for a safe prime of the given bit length: a prime p such
// that q = (p-1)/2 is also prime. bits must be >= 16.
//
// Mirrors original_source's reliance on a safe-prime generator feeding
// sample_generator_of_rsa_group (algorithms/src/utils.rs), but built from
// Go's crypto/rand and math/big.ProbablyPrime rather than a borrowed
// GMP-backed prime sieve.
func Generate(ctx context.Context, bits int) (Pair, error) {
	if bits < 16 {
		return Pair{}, fmt.Errorf("safeprime: bits must be >= 16, got %d", bits)
	}
	for {
		select {
		case <-ctx.Done():
			return Pair{}, ErrGenerationFailed
		default:
		}

		q, err := randOddOfBitLen(bits - 1)
		if err != nil {
			return Pair{}, err
		}
		if !passesSmallPrimeSieve(q) {
			continue
		}
		if !q.ProbablyPrime(MillerRabinRounds) {
			continue
		}
		p := new(big.Int).Lsh(q, 1)
		p.Add(p, big.NewInt(1))
		if !passesSmallPrimeSieve(p) {
			continue
		}
		if !p.ProbablyPrime(MillerRabinRounds) {
			continue
		}
		return Pair{P: p, Q: q}, nil
	}
}

// randOddOfBitLen returns a random odd integer with exactly `bits` bits (top
// bit set).
func randOddOfBitLen(bits int) (*big.Int, error) {
	byteLen := (bits + 7) / 8
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	n := new(big.Int).SetBytes(buf)

	topBit := bits - 1
	n.SetBit(n, topBit, 1)
	n.SetBit(n, 0, 1)
	// Clear any bits above the requested length that SetBytes may have left
	// set if byteLen*8 > bits.
	mask := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	mask.Sub(mask, big.NewInt(1))
	n.And(n, mask)
	n.SetBit(n, topBit, 1)
	n.SetBit(n, 0, 1)
	return n, nil
}

// passesSmallPrimeSieve trial-divides n against every prime below
// sieveBound, rejecting n (unless n itself equals the small prime) before
// the expensive Miller-Rabin pass runs.
func passesSmallPrimeSieve(n *big.Int) bool {
	mod := new(big.Int)
	for _, p := range smallPrimes {
		if n.Cmp(p) == 0 {
			return true
		}
		mod.Mod(n, p)
		if mod.Sign() == 0 {
			return false
		}
	}
	return true
}
