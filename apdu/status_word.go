package apdu

import "fmt"

// StatusWord is the two-byte trailer (SW1, SW2) every card response ends
// with.
type StatusWord uint16

// NewStatusWord builds a StatusWord from its two constituent bytes.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

func (sw StatusWord) SW1() byte { return byte(sw >> 8) }
func (sw StatusWord) SW2() byte { return byte(sw) }

// IsOK reports whether the card reported unqualified success.
func (sw StatusWord) IsOK() bool { return sw == SWOK }

// HasMoreData reports the 61XX "response available" case: XX further
// bytes can be retrieved with GET RESPONSE.
func (sw StatusWord) HasMoreData() bool { return sw.SW1() == 0x61 }

// NeedsRetry reports the 6CXX "wrong length" case: re-issue the command
// with Le = SW2.
func (sw StatusWord) NeedsRetry() bool { return sw.SW1() == 0x6C }

func (sw StatusWord) String() string {
	if name, ok := swNames[sw]; ok {
		return fmt.Sprintf("%04X (%s)", uint16(sw), name)
	}
	switch sw.SW1() {
	case 0x61:
		return fmt.Sprintf("%04X (%d bytes available)", uint16(sw), sw.SW2())
	case 0x6C:
		return fmt.Sprintf("%04X (wrong length, Le=%d)", uint16(sw), sw.SW2())
	case 0x63:
		return fmt.Sprintf("%04X (warning, counter=%d)", uint16(sw), sw.SW2()&0x0F)
	}
	return fmt.Sprintf("%04X", uint16(sw))
}

// Standard status words this module branches on directly.
const (
	SWOK                    StatusWord = 0x9000
	SWWrongLength           StatusWord = 0x6700
	SWSecurityStatus        StatusWord = 0x6982
	SWRefDataNotUsable      StatusWord = 0x6984
	SWConditionsNotSatisfied StatusWord = 0x6985
	SWSecureMessagingObjMiss StatusWord = 0x6987
	SWSecureMessagingObjBad  StatusWord = 0x6988
	SWFileNotFound          StatusWord = 0x6A82
	SWRecordNotFound        StatusWord = 0x6A83
	SWReferenceDataNotFound StatusWord = 0x6A88
	SWWrongP1P2             StatusWord = 0x6A86
	SWInsNotSupported       StatusWord = 0x6D00
	SWClaNotSupported       StatusWord = 0x6E00
)

var swNames = map[StatusWord]string{
	SWOK:                     "OK",
	SWWrongLength:            "wrong length",
	SWSecurityStatus:         "security status not satisfied",
	SWRefDataNotUsable:       "referenced data not usable",
	SWConditionsNotSatisfied: "conditions of use not satisfied",
	SWSecureMessagingObjMiss: "secure messaging data object missing",
	SWSecureMessagingObjBad:  "secure messaging data object incorrect",
	SWFileNotFound:           "file not found",
	SWRecordNotFound:         "record not found",
	SWReferenceDataNotFound:  "referenced data not found",
	SWWrongP1P2:              "incorrect P1/P2",
	SWInsNotSupported:        "instruction not supported",
	SWClaNotSupported:        "class not supported",
}
