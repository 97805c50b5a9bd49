// Package testutil provides an in-memory message router for driving a set
// of protocols/*.Driver instances to completion in tests, adapted from the
// teacher's test/benchmark route()/setupParties() helpers but generalized
// onto internal/round's generic Driver instead of hand-rolled per-protocol
// routing.
package testutil

import (
	"fmt"

	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/party"
)

// Run drives every driver in parties to completion by repeatedly draining
// each one's outbox and delivering every message to its recipient(s), until
// no driver has anything left to send. It returns an error naming the first
// party that either stalls before finishing or ends in a fault.
func Run[T any, R any](parties map[party.Index]*round.Driver[T, R]) error {
	for {
		type delivery struct {
			to  party.Index
			msg round.Msg[T]
		}
		var deliveries []delivery
		for _, d := range parties {
			for _, msg := range d.Outbox() {
				if msg.Broadcast {
					for to := range parties {
						if to == msg.From {
							continue
						}
						deliveries = append(deliveries, delivery{to, msg})
					}
				} else {
					deliveries = append(deliveries, delivery{msg.To, msg})
				}
			}
		}
		if len(deliveries) == 0 {
			break
		}
		for _, dl := range deliveries {
			d, ok := parties[dl.to]
			if !ok || d.Done() {
				continue
			}
			if err := d.HandleMessage(dl.msg); err != nil {
				return fmt.Errorf("testutil: delivering round %d message from %s to %s: %w", dl.msg.Round, dl.msg.From, dl.to, err)
			}
		}
	}
	for id, d := range parties {
		if !d.Done() {
			return fmt.Errorf("testutil: party %s never finished, stuck at round %d", id, d.CurrentRound())
		}
	}
	return nil
}
