package cardproxy

import "github.com/gematik-go/cardlink/cvc"

// connectorAID is the connector's own transport-certificate-bearing
// module application identifier — distinct from SMC-K, which backs the
// connector's device authentication rather than its TLS transport
// identity.
var connectorAID = []byte{0xD2, 0x76, 0x00, 0x01, 0x44, 0x80, 0x05}

var connectorMasters = masterKeys{
	CMS128: []byte("conn-cms-128-master-placeholder-"),
	CUP128: []byte("conn-cup-128-master-placeholder-"),
	CMS256: []byte("conn-cms-256-master-key-placeholder----"),
	CUP256: []byte("conn-cup-256-master-key-placeholder----"),
	Elc256: []byte("conn-elc-256-master-key-placeholder----"),
}

// Connector is the fifth personality: it additionally exposes a CVC.TC
// transport certificate over and above the mandatory SM certificate,
// per the composition-over-inheritance design that lets only this
// variant implement TransportCertificateHolder.
type Connector struct {
	id *Identity
	tc cvc.Certificate
}

func (c *Connector) Name() string { return "Konnektor" }
func (c *Connector) AID() []byte  { return connectorAID }

func (c *Connector) Boot(tx Transmitter) (*Identity, error) {
	id, err := bootAndDerive(tx, connectorAID, connectorMasters)
	if err != nil {
		return nil, err
	}
	c.id = id

	tc, err := readBinarySFI(tx, sfiTransportCert, 0, true)
	if err != nil {
		return nil, err
	}
	c.tc = cvc.Certificate{Value: tc}

	return id, nil
}

func (c *Connector) GetCVC4SM() (cvc.Certificate, error) {
	if c.id == nil {
		return cvc.Certificate{}, &Error{Kind: KindUnknown, Op: "GetCVC4SM", Err: errNotBooted}
	}
	return c.id.CACert, nil
}

func (c *Connector) GetCVCRoleAuthentication() (cvc.Certificate, bool, error) {
	return cvc.Certificate{}, false, nil
}

func (c *Connector) GetCVC4TC() (cvc.Certificate, error) {
	if c.id == nil {
		return cvc.Certificate{}, &Error{Kind: KindUnknown, Op: "GetCVC4TC", Err: errNotBooted}
	}
	return c.tc, nil
}

var _ TransportCertificateHolder = (*Connector)(nil)
