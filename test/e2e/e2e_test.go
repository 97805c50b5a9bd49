// Package e2e_test exercises protocols/{keygen,sign,reshare} together as a
// real caller would: full keygen across a committee, a threshold signature
// over the resulting key, and resharing onto a differently-sized
// committee, plus the fault-attribution path when a dealt share is
// corrupted in transit. Grounded on luxfi-threshold's protocols/lss Ginkgo
// suite (lss_suite_test.go / lss_property_test.go), adapted from its
// property-style "any valid (t,n) configuration" testing onto a fixed table
// of scenarios since this repository's protocols are single-curve and
// single-purpose rather than pluggable across curves/schemes.
package e2e_test

import (
	"crypto/sha256"
	"errors"
	"math/big"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/internal/testutil"
	"github.com/vaultmesh/threshold-ecdsa/party"
	"github.com/vaultmesh/threshold-ecdsa/protocols/keygen"
	"github.com/vaultmesh/threshold-ecdsa/protocols/reshare"
	"github.com/vaultmesh/threshold-ecdsa/protocols/sign"
)

func committeeOf(n int) []party.Index {
	out := make([]party.Index, n)
	for i := 0; i < n; i++ {
		out[i] = party.Index(string(rune('a' + i)))
	}
	return out
}

func keygenAll(committee []party.Index, params party.Parameters) (map[party.Index]*keygen.LocalKey, error) {
	drivers := make(map[party.Index]*round.Driver[keygen.Msg, keygen.LocalKey], len(committee))
	for _, id := range committee {
		d, err := keygen.New(id, committee, params, nil)
		if err != nil {
			return nil, err
		}
		drivers[id] = d
	}
	if err := testutil.Run(drivers); err != nil {
		return nil, err
	}
	keys := make(map[party.Index]*keygen.LocalKey, len(committee))
	for id, d := range drivers {
		if d.Err() != nil {
			return nil, d.Err()
		}
		result, _ := d.Result()
		k := result
		keys[id] = &k
	}
	return keys, nil
}

func signAll(keys map[party.Index]*keygen.LocalKey, signers []party.Index, msgHash [32]byte) (sign.Signature, map[party.Index]*round.Driver[sign.Msg, sign.Signature], error) {
	drivers := make(map[party.Index]*round.Driver[sign.Msg, sign.Signature], len(signers))
	for _, id := range signers {
		d, err := sign.New(id, keys[id], signers, msgHash, nil)
		if err != nil {
			return sign.Signature{}, nil, err
		}
		drivers[id] = d
	}
	err := testutil.Run(drivers)
	var sig sign.Signature
	for _, d := range drivers {
		if s, ok := d.Result(); ok {
			sig = s
		}
	}
	return sig, drivers, err
}

var _ = Describe("Keygen and signing", func() {
	DescribeTable("a (t,n) committee agrees on a public key and can sign",
		func(threshold, n int) {
			params, err := party.NewParameters(threshold+1, n)
			Expect(err).NotTo(HaveOccurred())
			committee := committeeOf(n)

			keys, err := keygenAll(committee, params)
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(HaveLen(n))

			var Y curve.Point
			for i, id := range committee {
				k := keys[id]
				if i == 0 {
					Y = k.PublicKey
				} else {
					Expect(k.PublicKey.Equal(Y)).To(BeTrue(), "party %s disagrees on Y", id)
				}
			}

			signers := committee[:params.Signers()]
			msgHash := sha256.Sum256([]byte("e2e scenario message"))
			sig, drivers, err := signAll(keys, signers, msgHash)
			Expect(err).NotTo(HaveOccurred())
			for id, d := range drivers {
				Expect(d.Err()).To(BeNil(), "signer %s faulted", id)
			}

			m := curve.NewScalarFromBigInt(new(big.Int).SetBytes(msgHash[:]))
			Expect(sig.Verify(Y, m)).To(BeTrue())
		},
		Entry("t=1,n=3", 1, 3),
		Entry("t=2,n=4", 2, 4),
		Entry("t=2,n=5", 2, 5),
	)
})

var _ = Describe("Resharing", func() {
	It("preserves the group public key across a (t,n) -> (t',n') committee change", func() {
		oldParams, err := party.NewParameters(2, 3)
		Expect(err).NotTo(HaveOccurred())
		oldCommittee := committeeOf(3)
		oldKeys, err := keygenAll(oldCommittee, oldParams)
		Expect(err).NotTo(HaveOccurred())
		oldY := oldKeys[oldCommittee[0]].PublicKey

		oldDealers := []party.Index{oldCommittee[0], oldCommittee[2]} // skip the middle member
		newParams, err := party.NewParameters(3, 5)
		Expect(err).NotTo(HaveOccurred())
		newCommittee := []party.Index{oldCommittee[0], "d", "e", "f", "g"}

		allParties := map[party.Index]struct{}{}
		for _, id := range oldDealers {
			allParties[id] = struct{}{}
		}
		for _, id := range newCommittee {
			allParties[id] = struct{}{}
		}

		drivers := make(map[party.Index]*round.Driver[reshare.Msg, *keygen.LocalKey], len(allParties))
		for id := range allParties {
			var oldKey *keygen.LocalKey
			if k, ok := oldKeys[id]; ok {
				oldKey = k
			}
			d, err := reshare.New(id, oldKey, oldDealers, newCommittee, newParams, nil)
			Expect(err).NotTo(HaveOccurred())
			drivers[id] = d
		}
		Expect(testutil.Run(drivers)).To(Succeed())

		newKeys := map[party.Index]*keygen.LocalKey{}
		for id, d := range drivers {
			Expect(d.Err()).To(BeNil(), "party %s faulted", id)
			result, ok := d.Result()
			Expect(ok).To(BeTrue())
			if result != nil {
				newKeys[id] = result
			}
		}
		Expect(newKeys).To(HaveLen(len(newCommittee)))
		for id, k := range newKeys {
			Expect(k.PublicKey.Equal(oldY)).To(BeTrue(), "party %s's reshared key diverges", id)
		}

		signers := []party.Index{newCommittee[0], "d", "e"}
		msgHash := sha256.Sum256([]byte("post-reshare message"))
		sig, signDrivers, err := signAll(newKeys, signers, msgHash)
		Expect(err).NotTo(HaveOccurred())
		for id, d := range signDrivers {
			Expect(d.Err()).To(BeNil(), "signer %s faulted", id)
		}
		m := curve.NewScalarFromBigInt(new(big.Int).SetBytes(msgHash[:]))
		Expect(sig.Verify(oldY, m)).To(BeTrue())
	})
})

var _ = Describe("Fault attribution", func() {
	It("blames the dealer whose Feldman share fails verification", func() {
		params, err := party.NewParameters(2, 3)
		Expect(err).NotTo(HaveOccurred())
		committee := committeeOf(3)

		drivers := make(map[party.Index]*round.Driver[keygen.Msg, keygen.LocalKey], len(committee))
		for _, id := range committee {
			d, err := keygen.New(id, committee, params, nil)
			Expect(err).NotTo(HaveOccurred())
			drivers[id] = d
		}

		corrupted := false
		corruptedDealer := party.Index("")
		faultedParty := party.Index("")
		var faultErr error
		var culprits []party.Index

		for {
			type delivery struct {
				to  party.Index
				msg round.Msg[keygen.Msg]
			}
			var deliveries []delivery
			for _, d := range drivers {
				for _, msg := range d.Outbox() {
					if msg.Broadcast {
						for to := range drivers {
							if to != msg.From {
								deliveries = append(deliveries, delivery{to, msg})
							}
						}
						continue
					}
					if !corrupted && msg.Body.Round2 != nil && len(msg.Body.Round2.ShareValue) > 0 {
						tampered := append([]byte(nil), msg.Body.Round2.ShareValue...)
						tampered[0] ^= 0xFF
						msg.Body.Round2.ShareValue = tampered
						corrupted = true
						corruptedDealer = msg.From
					}
					deliveries = append(deliveries, delivery{msg.To, msg})
				}
			}
			if len(deliveries) == 0 {
				break
			}
			for _, dl := range deliveries {
				d, ok := drivers[dl.to]
				if !ok || d.Done() {
					continue
				}
				if err := d.HandleMessage(dl.msg); err != nil {
					var fault *round.Fault
					if errors.As(err, &fault) {
						faultedParty = dl.to
						faultErr = err
						culprits = fault.Culprits
					}
				}
			}
		}

		Expect(corrupted).To(BeTrue(), "test setup failed to intercept a round-2 share")
		Expect(faultErr).To(HaveOccurred())
		Expect(faultedParty).NotTo(BeEmpty())
		Expect(culprits).To(ContainElement(corruptedDealer))
	})
})
