// Package wire provides canonical CBOR encode/decode helpers for the
// persisted LocalKey record this module writes between protocol runs
// (spec.md §6, protocols/keygen's MarshalWire/UnmarshalWire). The teacher
// serializes its round payloads with plain encoding/json (see
// internal/protocol/keygen/round_3.go's Round3Payload marshalling); we
// replace that with CBOR's deterministic-map-key canonical encoding mode
// (RFC 7049 §3.9, via cbor.CanonicalEncOptions), which luxfi-threshold's round1.go already flags as the
// compatible wire format for this kind of protocol state ("CBOR
// compatibility" comments around its BroadcastContent type), so two
// independent implementations of this protocol would produce byte-identical
// records for the same logical key share -- something JSON's
// unordered-map-key encoding cannot guarantee. Network transport is out of
// this module's scope (see SPEC_FULL.md Non-goals), so this package only
// ever wraps a full record, never a per-round message envelope.
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: building canonical CBOR encoder: %v", err))
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: building CBOR decoder: %v", err))
	}
}

// Marshal encodes v using canonical (RFC 7049 §3.9) CBOR: map keys sorted
// length-first, no indefinite-length items, shortest-form integers.
func Marshal(v interface{}) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal: %w", err)
	}
	return b, nil
}

// Unmarshal decodes CBOR bytes into v.
func Unmarshal(data []byte, v interface{}) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("wire: unmarshal: %w", err)
	}
	return nil
}
