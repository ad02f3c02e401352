package cardproxy

import "github.com/gematik-go/cardlink/cvc"

// Variant is the shared contract every card-family personality
// implements on top of the generic boot sequence: its own application
// identifier, the SM certificate every generation-2 card exposes, and
// optionally a role-authentication certificate and (for the connector
// module only) a transport certificate.
type Variant interface {
	Name() string
	AID() []byte
	Boot(tx Transmitter) (*Identity, error)

	GetCVC4SM() (cvc.Certificate, error)
	GetCVCRoleAuthentication() (cvc.Certificate, bool, error)
}

// TransportCertificateHolder is implemented only by variants that expose
// a CVC.TC connector transport certificate.
type TransportCertificateHolder interface {
	GetCVC4TC() (cvc.Certificate, error)
}

// masterKeys is the five per-family master-key byte strings every
// variant hard-codes: a 128-bit and a 256-bit master for each of the
// CMS and CUP/VSD symmetric-key families, plus the ELC-256 master the
// EC private key is derived from.
type masterKeys struct {
	CMS128 []byte
	CUP128 []byte
	CMS256 []byte
	CUP256 []byte
	Elc256 []byte
}

// bootAndDerive runs the generic boot sequence for aid and, once the
// card's ICCSN is known, derives its eight card-individual symmetric
// keys and EC scalar from masters.
func bootAndDerive(tx Transmitter, aid []byte, masters masterKeys) (*Identity, error) {
	id, err := bootGeneric(tx, aid)
	if err != nil {
		return nil, err
	}
	id.Keys = deriveKeySet(masters.CMS128, masters.CUP128, masters.CMS256, masters.CUP256, id.ICCSN)
	id.ECPrivateKey = deriveECScalar(masters.Elc256, id.ICCSN)
	return id, nil
}
