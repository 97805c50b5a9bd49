package keygen

import (
	"fmt"
	"math/big"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/paillier"
	"github.com/vaultmesh/threshold-ecdsa/internal/ridkey"
	"github.com/vaultmesh/threshold-ecdsa/internal/wire"
	"github.com/vaultmesh/threshold-ecdsa/internal/zkp"
	"github.com/vaultmesh/threshold-ecdsa/party"
)

// wireLocalKey is LocalKey flattened to CBOR-safe types: curve.Scalar,
// curve.Point and paillier.PrivateKey all keep their backing storage
// unexported (see protocols/keygen's Round3Payload doc comment), so a
// durable record has to go through compressed/big.Int-bytes forms the same
// way the round payloads already do.
type wireLocalKey struct {
	Self       string                `cbor:"self"`
	Threshold  int                   `cbor:"threshold"`
	ShareCount int                   `cbor:"share_count"`
	Committee  []string              `cbor:"committee"`
	ShareXi    []byte                `cbor:"share_xi"`
	PublicKey  []byte                `cbor:"public_key"`
	FeldmanC   map[string][][]byte   `cbor:"feldman_c"`
	PaillierSK wirePaillierPrivate   `cbor:"paillier_sk"`
	PaillierPK map[string][]byte     `cbor:"paillier_pk"`
	Setups     map[string]wireSetup  `cbor:"setups"`
	ChainKey   []byte                `cbor:"chain_key"`
}

type wirePaillierPrivate struct {
	N      []byte `cbor:"n"`
	Lambda []byte `cbor:"lambda"`
	Mu     []byte `cbor:"mu"`
}

type wireSetup struct {
	NTilde []byte `cbor:"n_tilde"`
	H1     []byte `cbor:"h1"`
	H2     []byte `cbor:"h2"`
	ProofY []byte `cbor:"proof_y"`
	ProofC []byte `cbor:"proof_c"`
}

// MarshalWire encodes a LocalKey as canonical CBOR (spec.md §6's persisted
// key-share record), the format a party would write to durable storage
// between protocol runs.
func (k *LocalKey) MarshalWire() ([]byte, error) {
	committee := make([]string, len(k.Committee))
	for i, id := range k.Committee {
		committee[i] = string(id)
	}
	feldman := make(map[string][][]byte, len(k.FeldmanC))
	for id, points := range k.FeldmanC {
		encoded := make([][]byte, len(points))
		for i, p := range points {
			b, err := p.CompressedBytes()
			if err != nil {
				return nil, fmt.Errorf("keygen: encoding Feldman commitment for %s: %w", id, err)
			}
			encoded[i] = b
		}
		feldman[string(id)] = encoded
	}
	paillierPK := make(map[string][]byte, len(k.PaillierPK))
	for id, pk := range k.PaillierPK {
		paillierPK[string(id)] = pk.N.Bytes()
	}
	setups := make(map[string]wireSetup, len(k.Setups))
	for id, s := range k.Setups {
		setups[string(id)] = wireSetup{
			NTilde: s.NTilde.Bytes(),
			H1:     s.H1.Bytes(),
			H2:     s.H2.Bytes(),
			ProofY: s.Link.Y.Bytes(),
			ProofC: s.Link.C.Bytes(),
		}
	}
	pubKey, err := k.PublicKey.CompressedBytes()
	if err != nil {
		return nil, fmt.Errorf("keygen: encoding public key: %w", err)
	}

	w := wireLocalKey{
		Self:       string(k.Self),
		Threshold:  k.Params.Threshold(),
		ShareCount: k.Params.ShareCount(),
		Committee:  committee,
		ShareXi:    k.ShareXi.Bytes(),
		PublicKey:  pubKey,
		FeldmanC:   feldman,
		PaillierSK: wirePaillierPrivate{
			N:      k.PaillierSK.N.Bytes(),
			Lambda: k.PaillierSK.Lambda.Bytes(),
			Mu:     k.PaillierSK.Mu.Bytes(),
		},
		PaillierPK: paillierPK,
		Setups:     setups,
		ChainKey:   append([]byte(nil), k.ChainKey[:]...),
	}
	return wire.Marshal(w)
}

// UnmarshalWire decodes a CBOR record produced by MarshalWire back into a
// LocalKey, ready for use in a later signing or resharing session.
func UnmarshalWire(data []byte) (*LocalKey, error) {
	var w wireLocalKey
	if err := wire.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("keygen: decoding LocalKey: %w", err)
	}

	params, err := party.NewParameters(w.Threshold+1, w.ShareCount)
	if err != nil {
		return nil, fmt.Errorf("keygen: decoding LocalKey parameters: %w", err)
	}

	committee := make([]party.Index, len(w.Committee))
	for i, id := range w.Committee {
		committee[i] = party.Index(id)
	}

	feldman := make(map[party.Index][]curve.Point, len(w.FeldmanC))
	for id, encoded := range w.FeldmanC {
		points := make([]curve.Point, len(encoded))
		for i, b := range encoded {
			p, err := curve.PointFromCompressed(b)
			if err != nil {
				return nil, fmt.Errorf("keygen: decoding Feldman commitment for %s: %w", id, err)
			}
			points[i] = p
		}
		feldman[party.Index(id)] = points
	}

	paillierPK := make(map[party.Index]*paillier.PublicKey, len(w.PaillierPK))
	for id, nBytes := range w.PaillierPK {
		n := new(big.Int).SetBytes(nBytes)
		paillierPK[party.Index(id)] = &paillier.PublicKey{N: n, N2: new(big.Int).Mul(n, n)}
	}

	setups := make(map[party.Index]zkp.PublicSetup, len(w.Setups))
	for id, s := range w.Setups {
		setups[party.Index(id)] = zkp.PublicSetup{
			NTilde: new(big.Int).SetBytes(s.NTilde),
			H1:     new(big.Int).SetBytes(s.H1),
			H2:     new(big.Int).SetBytes(s.H2),
			Link: zkp.CompositeDLogProof{
				Y: new(big.Int).SetBytes(s.ProofY),
				C: new(big.Int).SetBytes(s.ProofC),
			},
		}
	}

	pubKey, err := curve.PointFromCompressed(w.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("keygen: decoding public key: %w", err)
	}

	n := new(big.Int).SetBytes(w.PaillierSK.N)
	sk := &paillier.PrivateKey{
		PublicKey: paillier.PublicKey{N: n, N2: new(big.Int).Mul(n, n)},
		Lambda:    new(big.Int).SetBytes(w.PaillierSK.Lambda),
		Mu:        new(big.Int).SetBytes(w.PaillierSK.Mu),
	}

	var chainKey ridkey.RID
	copy(chainKey[:], w.ChainKey)

	return &LocalKey{
		Self:       party.Index(w.Self),
		Params:     params,
		Committee:  committee,
		ShareXi:    curve.NewScalarFromBigInt(new(big.Int).SetBytes(w.ShareXi)),
		PublicKey:  pubKey,
		FeldmanC:   feldman,
		PaillierSK: sk,
		PaillierPK: paillierPK,
		Setups:     setups,
		ChainKey:   chainKey,
	}, nil
}
