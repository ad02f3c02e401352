// Package cvc models card-verifiable certificates (CAR + opaque value,
// per gemSpec_PKI's CV-certificate profile — field parsing itself is a
// collaborator this package does not implement) and the certificate
// chain importer that walks MSE SET / PSO VERIFY CERTIFICATE pairs to
// establish trust from a card's CA certificate up to a terminal
// certificate.
package cvc

import (
	"fmt"

	"github.com/gematik-go/cardlink/apdu"
)

// Kind classifies a chain-import error.
type Kind int

const (
	KindUnknown Kind = iota
	KindTrailerMismatch
	KindUnknownAnchor
)

// Error is a Kind-tagged chain-import error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("cvc: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Certificate is the subset of a CV certificate this module needs: its
// Certification Authority Reference and the raw value a dedicated
// parser (out of scope here) would decode further.
type Certificate struct {
	CAR   string
	Value []byte
}

// Transmitter is the channel a chain import runs commands over — a
// card.Channel in production, a fake in tests.
type Transmitter interface {
	Transmit(cmd *apdu.Command) (*apdu.Response, error)
}

const (
	insMSESet               = 0x22
	insPSOVerifyCertificate = 0x2A
	mseSetP1DST             = 0x81 // set Digital Signature Template (verification key)

	swReferenceDataNotFound = apdu.SWReferenceDataNotFound // 6A88
)

// ImportChain walks chain starting at index 0 (the certificate the card
// should end up trusting), sending MSE SET to select the verification key
// named by each certificate's CAR. While MSE SET answers 6A88 (the card
// does not know that CAR) the walk moves on to the next index without a
// PSO VERIFY CERTIFICATE. The first 9000 reverses the walk direction
// exactly once; from then on only a 9000 trailer is accepted, each
// certificate is verified with PSO VERIFY CERTIFICATE, and the walk steps
// back toward index 0, terminating after the certificate at index 0 is
// verified. If the chain is exhausted before the reversal, the anchor is
// unknown.
func ImportChain(tx Transmitter, chain []Certificate) (int, error) {
	if len(chain) == 0 {
		return 0, nil
	}

	imported := 0
	flipped := false
	step := 1

	for i := 0; i < len(chain); i += step {
		cert := chain[i]

		mse := &apdu.Command{Ins: insMSESet, P1: mseSetP1DST, P2: 0xB6, Data: []byte(cert.CAR)}
		mseResp, err := tx.Transmit(mse)
		if err != nil {
			return imported, &Error{Kind: KindUnknown, Op: "ImportChain", Err: err}
		}

		switch {
		case mseResp.Status.IsOK():
			// proceed to verify this certificate below.
			if !flipped {
				flipped = true
				step = -1
			}
		case mseResp.Status == swReferenceDataNotFound && !flipped:
			continue // CAR unknown to the card: try the next certificate up the chain
		default:
			return imported, &Error{Kind: KindTrailerMismatch, Op: "ImportChain",
				Err: fmt.Errorf("MSE SET rejected for CAR %q: %s", cert.CAR, mseResp.Status)}
		}

		pso := &apdu.Command{Ins: insPSOVerifyCertificate, P1: 0x00, P2: 0xBE, Data: cert.Value}
		psoResp, err := tx.Transmit(pso)
		if err != nil {
			return imported, &Error{Kind: KindUnknown, Op: "ImportChain", Err: err}
		}
		if !psoResp.Status.IsOK() {
			return imported, &Error{Kind: KindTrailerMismatch, Op: "ImportChain",
				Err: fmt.Errorf("PSO VERIFY CERTIFICATE rejected for CAR %q: %s", cert.CAR, psoResp.Status)}
		}

		imported++
		if flipped && i == 0 {
			return imported, nil
		}
	}

	if !flipped {
		return imported, &Error{Kind: KindUnknownAnchor, Op: "ImportChain",
			Err: fmt.Errorf("chain exhausted before reaching a trusted anchor")}
	}
	return imported, nil
}
