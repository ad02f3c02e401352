// Package cardproxy implements the generic card-proxy boot sequence and
// the five card-family personalities (patient card, professional card,
// two module-card flavours, and the connector-level module) that each
// hard-code their own AID, key references and exposed certificate set
// on top of it.
package cardproxy

import (
	"fmt"
	"math/big"

	"github.com/moov-io/bertlv"

	"github.com/gematik-go/cardlink/apdu"
	"github.com/gematik-go/cardlink/cvc"
)

// Kind classifies a card-proxy error.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnknownCardType
	KindTrailerMismatch
)

// Error is a Kind-tagged card-proxy error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("cardproxy: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

var errNotBooted = fmt.Errorf("card not booted: call Boot first")

// Transmitter is the channel a boot sequence runs commands over — a
// card.Channel in production, a fake in tests.
type Transmitter interface {
	Transmit(cmd *apdu.Command) (*apdu.Response, error)
}

const (
	insSelect     = 0xA4
	insReadBinary = 0xB0

	sfiATR           = 29
	sfiVersion2      = 17
	sfiGDO           = 2
	sfiCACert        = 7
	sfiRoleAuthCert  = 6
	sfiTransportCert = 8

	tagBufferSize = "E0"
	tagOSVersion  = "D0"
)

// Identity is every field the generic boot sequence and key-derivation
// formulas populate for a card.
type Identity struct {
	ICCSN        []byte
	OSVersion    []byte
	ProductInfo  [][]byte
	MaxAPDULen   [4]int
	Version2     []byte
	CACert       cvc.Certificate
	Keys         keySet
	ECPrivateKey *big.Int
}

func selectMF(tx Transmitter, aid []byte) error {
	cmd := &apdu.Command{Ins: insSelect, P1: 0x04, P2: 0x0C, Data: aid}
	resp, err := tx.Transmit(cmd)
	if err != nil {
		return err
	}
	if !resp.Status.IsOK() {
		return &Error{Kind: KindTrailerMismatch, Op: "SelectMF", Err: fmt.Errorf("select MF: %s", resp.Status)}
	}
	return nil
}

func readBinarySFI(tx Transmitter, sfi byte, offset int, extended bool) ([]byte, error) {
	ne := 256
	if extended {
		ne = 65536
	}
	cmd := &apdu.Command{Ins: insReadBinary, P1: 0x80 | sfi, P2: byte(offset), Ne: ne}
	resp, err := tx.Transmit(cmd)
	if err != nil {
		return nil, err
	}
	if !resp.Status.IsOK() {
		return nil, &Error{Kind: KindTrailerMismatch, Op: "ReadBinary",
			Err: fmt.Errorf("read binary SFI %d: %s", sfi, resp.Status)}
	}
	return resp.Data, nil
}

// bootGeneric runs the AID-independent boot sequence: select MF, read
// EF.ATR for the buffer-size and OS-version/product-indicator data
// objects, read EF.Version2, read EF.GDO for the ICCSN, and read the CA
// certificate.
func bootGeneric(tx Transmitter, aid []byte) (*Identity, error) {
	if err := selectMF(tx, aid); err != nil {
		return nil, err
	}

	atr, err := readBinarySFI(tx, sfiATR, 0, false)
	if err != nil {
		return nil, err
	}
	dos, err := bertlv.Decode(atr)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Op: "ParseEFATR", Err: err}
	}

	id := &Identity{}
	for _, do := range dos {
		switch do.Tag {
		case tagBufferSize:
			lens := parseFourDERIntegers(do.Value)
			copy(id.MaxAPDULen[:], lens)
		case tagOSVersion, "D2", "D3", "D4":
			id.ProductInfo = append(id.ProductInfo, do.Value)
			if do.Tag == tagOSVersion {
				id.OSVersion = do.Value
			}
		}
	}

	version2, err := readBinarySFI(tx, sfiVersion2, 0, true)
	if err != nil {
		return nil, err
	}
	id.Version2 = version2

	gdo, err := readBinarySFI(tx, sfiGDO, 0, false)
	if err != nil {
		return nil, err
	}
	if len(gdo) < 2 {
		return nil, &Error{Kind: KindUnknown, Op: "ParseEFGDO", Err: fmt.Errorf("EF.GDO too short")}
	}
	id.ICCSN = gdo[2:]

	caCert, err := readBinarySFI(tx, sfiCACert, 0, true)
	if err != nil {
		return nil, err
	}
	id.CACert = cvc.Certificate{Value: caCert}

	return id, nil
}

// parseFourDERIntegers splits a constructed buffer-size DO into its four
// DER INTEGER children's numeric values.
func parseFourDERIntegers(value []byte) []int {
	dos, err := bertlv.Decode(value)
	if err != nil {
		return nil
	}
	out := make([]int, 0, 4)
	for _, do := range dos {
		v := 0
		for _, b := range do.Value {
			v = v<<8 | int(b)
		}
		out = append(out, v)
	}
	return out
}
