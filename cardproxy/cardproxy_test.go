package cardproxy

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/moov-io/bertlv"

	"github.com/gematik-go/cardlink/apdu"
)

func TestDeriveK128IsTruncatedK256(t *testing.T) {
	master := []byte("master-key")
	iccsn := []byte{0x80, 0x27, 0x61, 0x01, 0x02, 0x03, 0x04, 0x05}

	k256 := deriveK256(master, iccsn, suffixEnc)
	k128 := deriveK128(master, iccsn, suffixEnc)

	if !bytes.Equal(k128, k256[:16]) {
		t.Errorf("deriveK128() = % X, want first 16 bytes of deriveK256() = % X", k128, k256[:16])
	}
}

func TestDeriveK256MatchesSHA256Formula(t *testing.T) {
	master := []byte("m")
	iccsn := []byte{0x01, 0x02}
	h := sha256.New()
	h.Write(master)
	h.Write(iccsn)
	h.Write(suffixMac)
	want := h.Sum(nil)

	got := deriveK256(master, iccsn, suffixMac)
	if !bytes.Equal(got, want) {
		t.Errorf("deriveK256() = % X, want % X", got, want)
	}
}

func TestDeriveKeyPairDistinguishesEncAndMac(t *testing.T) {
	kp := deriveKeyPair([]byte("master128"), []byte("master256"), []byte{0x01, 0x02, 0x03})
	if bytes.Equal(kp.Enc128, kp.Mac128) {
		t.Error("Enc128 and Mac128 must differ (different suffixes)")
	}
	if bytes.Equal(kp.Enc256, kp.Mac256) {
		t.Error("Enc256 and Mac256 must differ (different suffixes)")
	}
}

func TestDeriveKeySetDerivesEightDistinctKeys(t *testing.T) {
	iccsn := []byte{0x01, 0x02, 0x03}
	ks := deriveKeySet(
		[]byte("cms128"), []byte("cup128"),
		[]byte("cms256"), []byte("cup256"),
		iccsn,
	)

	all := [][]byte{
		ks.CMS.Enc128, ks.CMS.Mac128, ks.CMS.Enc256, ks.CMS.Mac256,
		ks.CUP.Enc128, ks.CUP.Mac128, ks.CUP.Enc256, ks.CUP.Mac256,
	}
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if bytes.Equal(all[i], all[j]) {
				t.Errorf("key %d and key %d are equal, want all eight keys distinct", i, j)
			}
		}
	}

	// the CMS and CUP/VSD families must be derived from their own
	// masters, not a shared one reused across both.
	want := deriveKeyPair([]byte("cms128"), []byte("cms256"), iccsn)
	if !bytes.Equal(ks.CMS.Enc128, want.Enc128) {
		t.Errorf("CMS.Enc128 = % X, want % X derived from the CMS masters", ks.CMS.Enc128, want.Enc128)
	}
}

func TestDeriveECScalarIsReducedModOrder(t *testing.T) {
	d := deriveECScalar([]byte("master"), []byte{0x01, 0x02, 0x03, 0x04})
	if d.Sign() < 0 || d.Cmp(brainpoolP256r1Order) >= 0 {
		t.Errorf("deriveECScalar() = %s, want value in [0, n)", d.String())
	}
}

func TestDeriveECScalarIsDeterministic(t *testing.T) {
	master := []byte("master")
	iccsn := []byte{0x09, 0x08, 0x07}
	a := deriveECScalar(master, iccsn)
	b := deriveECScalar(master, iccsn)
	if a.Cmp(b) != 0 {
		t.Error("deriveECScalar() must be deterministic for identical inputs")
	}
}

// fakeBootTransmitter answers the generic boot sequence's SELECT /
// READ BINARY calls with a scripted, well-formed EF.ATR, EF.Version2,
// EF.GDO and CA-certificate payload, letting bootGeneric be exercised
// without a physical card.
type fakeBootTransmitter struct {
	iccsn []byte
}

func (f *fakeBootTransmitter) Transmit(cmd *apdu.Command) (*apdu.Response, error) {
	ok := apdu.NewStatusWord(0x90, 0x00)
	switch cmd.Ins {
	case insSelect:
		return &apdu.Response{Status: ok}, nil
	case insReadBinary:
		sfi := cmd.P1 &^ 0x80
		switch sfi {
		case sfiATR:
			bufferSizeChildren := []bertlv.TLV{
				{Tag: "02", Value: []byte{0x00, 0x00}},
				{Tag: "02", Value: []byte{0x05, 0x00}},
				{Tag: "02", Value: []byte{0x05, 0x00}},
				{Tag: "02", Value: []byte{0x05, 0x00}},
			}
			bufferSize, _ := bertlv.Encode(bufferSizeChildren)
			dos := []bertlv.TLV{
				{Tag: tagBufferSize, Value: bufferSize},
				{Tag: tagOSVersion, Value: []byte{0x01, 0x00}},
			}
			data, _ := bertlv.Encode(dos)
			return &apdu.Response{Data: data, Status: ok}, nil
		case sfiVersion2:
			return &apdu.Response{Data: []byte{0xAA, 0xBB}, Status: ok}, nil
		case sfiGDO:
			gdo := append([]byte{0x5A, byte(len(f.iccsn))}, f.iccsn...)
			return &apdu.Response{Data: gdo, Status: ok}, nil
		case sfiCACert, sfiRoleAuthCert, sfiTransportCert:
			return &apdu.Response{Data: []byte{0xCA, 0xFE}, Status: ok}, nil
		}
	}
	return &apdu.Response{Status: apdu.NewStatusWord(0x6A, 0x82)}, nil
}

func TestBootGenericParsesIdentity(t *testing.T) {
	iccsn := []byte{0x80, 0x27, 0x61, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	id, err := bootGeneric(&fakeBootTransmitter{iccsn: iccsn}, egkAID)
	if err != nil {
		t.Fatalf("bootGeneric() error = %v", err)
	}
	if !bytes.Equal(id.ICCSN, iccsn) {
		t.Errorf("ICCSN = % X, want % X", id.ICCSN, iccsn)
	}
	if !bytes.Equal(id.Version2, []byte{0xAA, 0xBB}) {
		t.Errorf("Version2 = % X, want AA BB", id.Version2)
	}
	if id.MaxAPDULen[1] != 5*256 {
		t.Errorf("MaxAPDULen[1] = %d, want %d", id.MaxAPDULen[1], 5*256)
	}
	if len(id.CACert.Value) == 0 {
		t.Error("CACert.Value is empty")
	}
}

func TestEGKBootDerivesKeysFromICCSN(t *testing.T) {
	iccsn := []byte{0x80, 0x27, 0x61, 0x09, 0x09, 0x09, 0x09, 0x09}
	egk := &EGK{}
	id, err := egk.Boot(&fakeBootTransmitter{iccsn: iccsn})
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	wantCMS := deriveKeyPair(egkMasters.CMS128, egkMasters.CMS256, iccsn)
	if !bytes.Equal(id.Keys.CMS.Enc128, wantCMS.Enc128) {
		t.Errorf("derived CMS.Enc128 = % X, want % X", id.Keys.CMS.Enc128, wantCMS.Enc128)
	}
	wantCUP := deriveKeyPair(egkMasters.CUP128, egkMasters.CUP256, iccsn)
	if !bytes.Equal(id.Keys.CUP.Enc128, wantCUP.Enc128) {
		t.Errorf("derived CUP.Enc128 = % X, want % X", id.Keys.CUP.Enc128, wantCUP.Enc128)
	}
	if bytes.Equal(id.Keys.CMS.Enc128, id.Keys.CUP.Enc128) {
		t.Error("CMS.Enc128 and CUP.Enc128 must differ: they come from distinct master keys")
	}
	if _, has, _ := egk.GetCVCRoleAuthentication(); has {
		t.Error("EGK must not expose a role authentication certificate")
	}
}

func TestHBABootExposesRoleAuthentication(t *testing.T) {
	hba := &HBA{}
	if _, err := hba.Boot(&fakeBootTransmitter{iccsn: []byte{0x01, 0x02, 0x03, 0x04}}); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	cert, has, err := hba.GetCVCRoleAuthentication()
	if err != nil {
		t.Fatalf("GetCVCRoleAuthentication() error = %v", err)
	}
	if !has {
		t.Error("HBA must expose a role authentication certificate")
	}
	if len(cert.Value) == 0 {
		t.Error("role authentication certificate value is empty")
	}
}

func TestConnectorExposesTransportCertificate(t *testing.T) {
	conn := &Connector{}
	if _, err := conn.Boot(&fakeBootTransmitter{iccsn: []byte{0x01}}); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	tc, err := conn.GetCVC4TC()
	if err != nil {
		t.Fatalf("GetCVC4TC() error = %v", err)
	}
	if len(tc.Value) == 0 {
		t.Error("transport certificate value is empty")
	}
}

func TestGetCVC4SMFailsBeforeBoot(t *testing.T) {
	egk := &EGK{}
	if _, err := egk.GetCVC4SM(); err == nil {
		t.Fatal("GetCVC4SM() before Boot() succeeded, want error")
	}
}

func TestNewVariantRejectsUnknownName(t *testing.T) {
	if _, err := NewVariant("does-not-exist"); err == nil {
		t.Fatal("NewVariant() with unknown name succeeded, want error")
	}
}

func TestNewVariantConstructsEachRegisteredName(t *testing.T) {
	for _, name := range Variants() {
		v, err := NewVariant(name)
		if err != nil {
			t.Errorf("NewVariant(%q) error = %v", name, err)
			continue
		}
		if v.Name() == "" {
			t.Errorf("NewVariant(%q).Name() is empty", name)
		}
	}
}
