package cardproxy

import "github.com/gematik-go/cardlink/cvc"

// egkAID is the patient card (elektronische Gesundheitskarte)
// application identifier.
var egkAID = []byte{0xD2, 0x76, 0x00, 0x01, 0x44, 0x80, 0x00}

// egkMasters are the card-family master keys the eight individual
// symmetric keys and EC scalar are derived from. These are stand-ins
// for the operator-issued master key material a real deployment
// provisions out of band.
var egkMasters = masterKeys{
	CMS128: []byte("egk-cms-128-master-placeholder--"),
	CUP128: []byte("egk-cup-128-master-placeholder--"),
	CMS256: []byte("egk-cms-256-master-key-placeholder-----"),
	CUP256: []byte("egk-cup-256-master-key-placeholder-----"),
	Elc256: []byte("egk-elc-256-master-key-placeholder-----"),
}

// EGK is the patient card personality: it exposes only the mandatory
// CVC.SM certificate, with no role authentication certificate.
type EGK struct {
	id *Identity
}

func (c *EGK) Name() string { return "eGK" }
func (c *EGK) AID() []byte  { return egkAID }

func (c *EGK) Boot(tx Transmitter) (*Identity, error) {
	id, err := bootAndDerive(tx, egkAID, egkMasters)
	if err != nil {
		return nil, err
	}
	c.id = id
	return id, nil
}

func (c *EGK) GetCVC4SM() (cvc.Certificate, error) {
	if c.id == nil {
		return cvc.Certificate{}, &Error{Kind: KindUnknown, Op: "GetCVC4SM", Err: errNotBooted}
	}
	return c.id.CACert, nil
}

func (c *EGK) GetCVCRoleAuthentication() (cvc.Certificate, bool, error) {
	return cvc.Certificate{}, false, nil
}
