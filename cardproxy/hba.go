package cardproxy

import "github.com/gematik-go/cardlink/cvc"

// hbaAID is the professional card (Heilberufsausweis) application
// identifier.
var hbaAID = []byte{0xD2, 0x76, 0x00, 0x01, 0x46, 0x06}

var hbaMasters = masterKeys{
	CMS128: []byte("hba-cms-128-master-placeholder--"),
	CUP128: []byte("hba-cup-128-master-placeholder--"),
	CMS256: []byte("hba-cms-256-master-key-placeholder-----"),
	CUP256: []byte("hba-cup-256-master-key-placeholder-----"),
	Elc256: []byte("hba-elc-256-master-key-placeholder-----"),
}

// HBA is the professional card personality: the mandatory CVC.SM
// certificate plus the qualified role-authentication certificate that
// carries the holder's profession.
type HBA struct {
	id       *Identity
	roleAuth cvc.Certificate
}

func (c *HBA) Name() string { return "HBA" }
func (c *HBA) AID() []byte  { return hbaAID }

func (c *HBA) Boot(tx Transmitter) (*Identity, error) {
	id, err := bootAndDerive(tx, hbaAID, hbaMasters)
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

func (c *HBA) GetCVC4SM() (cvc.Certificate, error) {
	if c.id == nil {
		return cvc.Certificate{}, &Error{Kind: KindUnknown, Op: "GetCVC4SM", Err: errNotBooted}
	}
	return c.id.CACert, nil
}

func (c *HBA) GetCVCRoleAuthentication() (cvc.Certificate, bool, error) {
	if c.id == nil {
		return cvc.Certificate{}, false, &Error{Kind: KindUnknown, Op: "GetCVCRoleAuthentication", Err: errNotBooted}
	}
	return c.roleAuth, true, nil
}
