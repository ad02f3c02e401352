package cardproxy

import (
	"crypto/sha256"
	"math/big"
)

var (
	suffixEnc = []byte{0x00, 0x00, 0x00, 0x01}
	suffixMac = []byte{0x00, 0x00, 0x00, 0x02}
)

// deriveK128 derives a card-individual 128-bit symmetric key:
// SHA-256(master || iccsn || suffix)[0:16].
func deriveK128(master, iccsn, suffix []byte) []byte {
	full := deriveK256(master, iccsn, suffix)
	return full[:16]
}

// deriveK256 derives a card-individual 256-bit symmetric key:
// SHA-256(master || iccsn || suffix).
func deriveK256(master, iccsn, suffix []byte) []byte {
	h := sha256.New()
	h.Write(master)
	h.Write(iccsn)
	h.Write(suffix)
	return h.Sum(nil)
}

// brainpoolP256r1Order is the public group order n of the brainpoolP256r1
// curve. Curve arithmetic itself is out of scope for this module; only
// the scalar derivation below needs it.
var brainpoolP256r1Order, _ = new(big.Int).SetString(
	"A9FB57DBA1EEA9BC3E660A909D838D718C397AA3B561A6F7901E0E82974856A7", 16)

// deriveECScalar derives the card-individual EC private scalar:
// SHA-256(masterElc256 || iccsn || 00000001) mod n.
func deriveECScalar(masterElc256, iccsn []byte) *big.Int {
	h := sha256.New()
	h.Write(masterElc256)
	h.Write(iccsn)
	h.Write(suffixEnc)
	d := new(big.Int).SetBytes(h.Sum(nil))
	return d.Mod(d, brainpoolP256r1Order)
}

// keyPair is the four card-individual symmetric keys one key family
// (CMS or CUP/VSD) produces together, derived from that family's own
// 128-bit and 256-bit master keys.
type keyPair struct {
	Enc128 []byte
	Mac128 []byte
	Enc256 []byte
	Mac256 []byte
}

func deriveKeyPair(master128, master256, iccsn []byte) keyPair {
	return keyPair{
		Enc128: deriveK128(master128, iccsn, suffixEnc),
		Mac128: deriveK128(master128, iccsn, suffixMac),
		Enc256: deriveK256(master256, iccsn, suffixEnc),
		Mac256: deriveK256(master256, iccsn, suffixMac),
	}
}

// keySet is the full eight card-individual symmetric keys a card
// carries: {CMS, CUP/VSD} x {AES-128, AES-256} x {enc, mac}, each
// family derived independently from its own pair of master keys.
type keySet struct {
	CMS keyPair
	CUP keyPair
}

func deriveKeySet(masterCMS128, masterCUP128, masterCMS256, masterCUP256, iccsn []byte) keySet {
	return keySet{
		CMS: deriveKeyPair(masterCMS128, masterCMS256, iccsn),
		CUP: deriveKeyPair(masterCUP128, masterCUP256, iccsn),
	}
}
