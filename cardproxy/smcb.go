package cardproxy

import "github.com/gematik-go/cardlink/cvc"

// smcbAID is the institution module card (SMC-B, Security Module Card
// Typ B) application identifier.
var smcbAID = []byte{0xD2, 0x76, 0x00, 0x01, 0x44, 0x80, 0x03}

var smcbMasters = masterKeys{
	CMS128: []byte("smcb-cms-128-master-placeholder-"),
	CUP128: []byte("smcb-cup-128-master-placeholder-"),
	CMS256: []byte("smcb-cms-256-master-key-placeholder----"),
	CUP256: []byte("smcb-cup-256-master-key-placeholder----"),
	Elc256: []byte("smcb-elc-256-master-key-placeholder----"),
}

// SMCB is the institution module card personality: like HBA it carries
// a role-authentication certificate, but one that identifies the
// institution rather than a natural person.
type SMCB struct {
	id       *Identity
	roleAuth cvc.Certificate
}

func (c *SMCB) Name() string { return "SMC-B" }
func (c *SMCB) AID() []byte  { return smcbAID }

func (c *SMCB) Boot(tx Transmitter) (*Identity, error) {
	id, err := bootAndDerive(tx, smcbAID, smcbMasters)
	if err != nil {
		return nil, err
	}
	c.id = id

	roleAuth, err := readBinarySFI(tx, sfiRoleAuthCert, 0, true)
	if err != nil {
		return nil, err
	}
	c.roleAuth = cvc.Certificate{Value: roleAuth}

	return id, nil
}

func (c *SMCB) GetCVC4SM() (cvc.Certificate, error) {
	if c.id == nil {
		return cvc.Certificate{}, &Error{Kind: KindUnknown, Op: "GetCVC4SM", Err: errNotBooted}
	}
	return c.id.CACert, nil
}

func (c *SMCB) GetCVCRoleAuthentication() (cvc.Certificate, bool, error) {
	if c.id == nil {
		return cvc.Certificate{}, false, &Error{Kind: KindUnknown, Op: "GetCVCRoleAuthentication", Err: errNotBooted}
	}
	return c.roleAuth, true, nil
}
