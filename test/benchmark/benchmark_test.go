// Package benchmark times keygen and signing across a table of (t,n)
// configurations, grounded on the teacher's own test/benchmark/benchmark_test.go
// shape (b.StopTimer/b.StartTimer around per-iteration setup, a named
// sub-benchmark per configuration) and luxfi-threshold's
// lss_benchmark_test.go table of "k-of-n" scenarios, rebuilt on
// internal/testutil.Run instead of either repo's hand-rolled per-party
// goroutine-and-channel harness.
package benchmark

import (
	"crypto/sha256"
	"testing"

	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/internal/testutil"
	"github.com/vaultmesh/threshold-ecdsa/party"
	"github.com/vaultmesh/threshold-ecdsa/protocols/keygen"
	"github.com/vaultmesh/threshold-ecdsa/protocols/sign"
)

var scenarios = []struct {
	name      string
	n         int
	threshold int
}{
	{"1-of-3", 3, 1},
	{"2-of-5", 5, 2},
	{"3-of-7", 7, 3},
}

func committeeOf(n int) []party.Index {
	out := make([]party.Index, n)
	for i := 0; i < n; i++ {
		out[i] = party.Index(string(rune('a' + i)))
	}
	return out
}

func BenchmarkKeygen(b *testing.B) {
	for _, sc := range scenarios {
		b.Run(sc.name, func(b *testing.B) {
			params, err := party.NewParameters(sc.threshold+1, sc.n)
			if err != nil {
				b.Fatal(err)
			}
			committee := committeeOf(sc.n)

			for i := 0; i < b.N; i++ {
				drivers := make(map[party.Index]*round.Driver[keygen.Msg, keygen.LocalKey], sc.n)
				for _, id := range committee {
					d, err := keygen.New(id, committee, params, nil)
					if err != nil {
						b.Fatal(err)
					}
					drivers[id] = d
				}
				if err := testutil.Run(drivers); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkSign(b *testing.B) {
	for _, sc := range scenarios {
		b.Run(sc.name, func(b *testing.B) {
			params, err := party.NewParameters(sc.threshold+1, sc.n)
			if err != nil {
				b.Fatal(err)
			}
			committee := committeeOf(sc.n)

			keyDrivers := make(map[party.Index]*round.Driver[keygen.Msg, keygen.LocalKey], sc.n)
			for _, id := range committee {
				d, err := keygen.New(id, committee, params, nil)
				if err != nil {
					b.Fatal(err)
				}
				keyDrivers[id] = d
			}
			if err := testutil.Run(keyDrivers); err != nil {
				b.Fatal(err)
			}
			keys := make(map[party.Index]*keygen.LocalKey, sc.n)
			for id, d := range keyDrivers {
				result, _ := d.Result()
				k := result
				keys[id] = &k
			}

			signers := committee[:params.Signers()]
			msgHash := sha256.Sum256([]byte("benchmark message"))

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				drivers := make(map[party.Index]*round.Driver[sign.Msg, sign.Signature], len(signers))
				for _, id := range signers {
					d, err := sign.New(id, keys[id], signers, msgHash, nil)
					if err != nil {
						b.Fatal(err)
					}
					drivers[id] = d
				}
				if err := testutil.Run(drivers); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
