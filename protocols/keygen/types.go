// Package keygen implements the 4-round distributed key generation
// protocol (spec.md §4.H): every party contributes a random polynomial,
// Feldman-commits to it, exchanges VSS shares, and proves ownership of the
// resulting secret share before the group's combined public key is
// accepted.
//
// Structurally this follows the teacher's internal/protocol/keygen package
// round-for-round (round_1.go generates the Paillier key and VSS
// polynomial and commits; round_2.go decommits and distributes shares;
// round_3.go verifies shares and broadcasts a Schnorr proof of share
// ownership; round_4.go verifies every proof and finalizes), generalized
// onto internal/round's generic driver and internal/vss/internal/zkp
// instead of the teacher's inline big.Int polynomial math and missing ZK
// setup.
package keygen

import (
	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/paillier"
	"github.com/vaultmesh/threshold-ecdsa/internal/ridkey"
	"github.com/vaultmesh/threshold-ecdsa/internal/zkp"
	"github.com/vaultmesh/threshold-ecdsa/party"
)

// Msg is the single message-body type flowing through the keygen driver;
// exactly one of the round-tagged payload fields is populated, mirroring
// the teacher's KeyGenMessage{Type string, Payload []byte} envelope.
type Msg struct {
	Round1 *Round1Payload
	Round2 *Round2Payload
	Round3 *Round3Payload
}

// Round1Payload carries the hash commitment to a party's Paillier key,
// range-proof setup, Feldman commitments, and RID proposal.
type Round1Payload struct {
	CommitmentC []byte
}

// Round2Payload decommits round 1's public data and additionally carries
// the recipient-specific VSS share. In a real transport this would be a
// single broadcast plus n-1 individual point-to-point messages; since the
// broadcast half is identical for every recipient we fold it into each
// per-recipient message instead, so that each pair of parties exchanges
// exactly one round-2 message and the round driver's one-message-per-sender
// bookkeeping (see internal/round) does not need a second message class.
type Round2Payload struct {
	CommitmentD     []byte
	PaillierN       []byte
	CorrectKeyProof *paillier.CorrectKeyProof
	Setup           zkp.PublicSetup
	FeldmanCommits  [][]byte // compressed curve points
	RIDProposal     ridkey.RID
	ShareValue      []byte // this recipient's Feldman share, f_sender(recipient_index)
}

// Round3Payload broadcasts a party's public share Xi = xi*G together with a
// Schnorr proof of knowledge of xi. The proof is flattened to its wire
// components (rather than embedding zkp.SchnorrProof directly) since
// curve.Point/Scalar intentionally keep their backing storage unexported --
// CBOR can only encode the compressed/byte forms, not the internal
// secp256k1 field representation.
type Round3Payload struct {
	XiCompressed []byte
	ProofR       []byte
	ProofS       []byte
}

// LocalKey is the persisted output of a successful keygen run: everything a
// party needs to participate in later signing/resharing sessions.
type LocalKey struct {
	Self       party.Index
	Params     party.Parameters
	Committee  []party.Index
	ShareXi    curve.Scalar
	PublicKey  curve.Point
	FeldmanC   map[party.Index][]curve.Point
	PaillierSK *paillier.PrivateKey
	PaillierPK map[party.Index]*paillier.PublicKey
	Setups     map[party.Index]zkp.PublicSetup
	ChainKey   ridkey.RID
}
