package cardproxy

import "github.com/gematik-go/cardlink/cvc"

// smckAID is the Konnektor module card (SMC-K, Security Module Card Typ
// K) application identifier — the variant a connector uses for its own
// device authentication, distinct from the institution-facing SMC-B.
var smckAID = []byte{0xD2, 0x76, 0x00, 0x01, 0x44, 0x80, 0x04}

var smckMasters = masterKeys{
	CMS128: []byte("smck-cms-128-master-placeholder-"),
	CUP128: []byte("smck-cup-128-master-placeholder-"),
	CMS256: []byte("smck-cms-256-master-key-placeholder----"),
	CUP256: []byte("smck-cup-256-master-key-placeholder----"),
	Elc256: []byte("smck-elc-256-master-key-placeholder----"),
}

// SMCK is the connector module card personality: no role-authentication
// certificate, only the mandatory SM certificate — the connector's own
// identity is established separately via Connector.GetCVC4TC.
type SMCK struct {
	id *Identity
}

func (c *SMCK) Name() string { return "SMC-K" }
func (c *SMCK) AID() []byte  { return smckAID }

func (c *SMCK) Boot(tx Transmitter) (*Identity, error) {
	id, err := bootAndDerive(tx, smckAID, smckMasters)
	if err != nil {
		return nil, err
	}
	c.id = id
	return id, nil
}

func (c *SMCK) GetCVC4SM() (cvc.Certificate, error) {
	if c.id == nil {
		return cvc.Certificate{}, &Error{Kind: KindUnknown, Op: "GetCVC4SM", Err: errNotBooted}
	}
	return c.id.CACert, nil
}

func (c *SMCK) GetCVCRoleAuthentication() (cvc.Certificate, bool, error) {
	return cvc.Certificate{}, false, nil
}
