package apdu

import (
	"fmt"

	"github.com/gematik-go/cardlink/internal/bits"
)

// SecureMessaging is the ISO/IEC 7816-4 secure-messaging indicator carried
// in the CLA byte's SM bits.
type SecureMessaging int

const (
	SMNone         SecureMessaging = 0
	SMProprietary  SecureMessaging = 1
	SMHeaderNoProc SecureMessaging = 2
	SMHeaderAuth   SecureMessaging = 3
)

// Class is the decoded CLA (class) byte: chaining flag, secure-messaging
// indicator and logical channel number. Only channels 0-3 fit in the CLA
// byte itself ("First Interindustry" layout, channel in bits 1-2); this
// card OS carries channels 4-19 through the EscapePrefix command-header
// data object instead of ISO/IEC 7816-4's "Further Interindustry" CLA
// range, so that range is not decoded or produced here at all.
type Class struct {
	Chained         bool
	SecureMessaging SecureMessaging
	Channel         uint8
}

// DecodeClass decodes a raw CLA byte. Only the First Interindustry layout
// (bit 8 and bit 7 both clear) is accepted: proprietary class bytes (bit 8
// set) and the Further Interindustry range (bit 7 set) are both rejected,
// since channels 4-19 never appear as a bare CLA byte under this card OS.
func DecodeClass(cla byte) (Class, error) {
	if bits.IsSet(cla, 8) {
		return Class{}, fmt.Errorf("apdu: proprietary class byte 0x%02X not supported", cla)
	}
	if bits.IsSet(cla, 7) {
		return Class{}, fmt.Errorf("apdu: class byte 0x%02X is Further Interindustry; channels 4-19 are carried via EscapePrefix, not a CLA byte", cla)
	}

	return Class{
		Chained:         bits.IsSet(cla, 5),
		SecureMessaging: SecureMessaging(bits.GetRange(cla, 4, 3)),
		Channel:         bits.GetRange(cla, 2, 1),
	}, nil
}

// Encode rewrites Class into its First Interindustry CLA byte. It only
// accepts channels 0-3; callers targeting channel 4-19 must route the
// command through EscapePrefix instead (see Command.Bytes).
func (c Class) Encode() (byte, error) {
	if c.Channel > 3 {
		return 0, fmt.Errorf("apdu: channel %d cannot be encoded as a CLA byte; use EscapePrefix", c.Channel)
	}

	var raw byte
	if c.Chained {
		raw = bits.Set(raw, 5)
	}
	raw |= byte(c.SecureMessaging) << 2
	raw |= c.Channel
	return raw, nil
}

// EscapePrefix builds the "89 04 CLA' INS P1 P2" command-header data
// object this card OS uses in place of a Further Interindustry class
// byte for logical channels 4-19 (gemSpec_COS §(N032.500)b). CLA' is c's
// chaining/secure-messaging bits encoded as if for channel 0, with bit 6
// (0x20) set to flag the escape; the prefix does not encode the channel
// number itself. The outer command carries this prefix at the front of
// its data field and keeps its own CLA byte channel-less (see
// Command.Bytes), so the channel number does not appear on the wire.
func EscapePrefix(c Class, ins, p1, p2 byte) ([]byte, error) {
	if c.Channel < 4 || c.Channel > 19 {
		return nil, fmt.Errorf("apdu: escape prefix only applies to channels 4-19, got %d", c.Channel)
	}

	inner := Class{Chained: c.Chained, SecureMessaging: c.SecureMessaging}
	cla, err := inner.Encode()
	if err != nil {
		return nil, err
	}
	return []byte{0x89, 0x04, cla | 0x20, ins, p1, p2}, nil
}
