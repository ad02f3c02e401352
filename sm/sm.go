// Package sm implements the gemSpec_COS §13.2/§13.3 secure-messaging
// transformer: wrapping a command APDU into enciphered-data/Le/MAC data
// objects and unwrapping the card's response, against a pluggable
// CryptoProvider.
package sm

import (
	"fmt"

	"github.com/moov-io/bertlv"

	"github.com/gematik-go/cardlink/apdu"
)

// Kind classifies a secure-messaging error.
type Kind int

const (
	KindUnknown Kind = iota
	KindSecureMessagingFailure
	KindTrailerMismatch
)

// Error is a Kind-tagged secure-messaging error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("sm: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

const (
	tagPlainData      = "81"
	tagEnciphered      = "87"
	tagLe              = "97"
	tagProcessingStatus = "99"
	tagMAC             = "8E"

	paddingIndicatorISO = 0x01
)

// Session transforms one card's command/response stream under secure
// messaging. cmdEnc controls whether the next Secure call enciphers
// command data; it is mutable because not every command carries a
// confidential payload. rspEnc reports whether the most recent Unsecure
// call actually decrypted data, reset to false at the start of every
// call.
type Session struct {
	Crypto CryptoProvider
	cmdEnc bool
	rspEnc bool
}

// NewSession creates a Session around crypto. Command data is enciphered
// by default, matching gemSpec_COS's default posture for confidential
// commands; callers send plaintext commands (PIN verification excepted,
// handled upstream) by disabling it with SetCommandEncryption(false).
func NewSession(crypto CryptoProvider) *Session {
	return &Session{Crypto: crypto, cmdEnc: true}
}

// SetCommandEncryption toggles whether the next Secure call enciphers
// the command's data field.
func (s *Session) SetCommandEncryption(enabled bool) { s.cmdEnc = enabled }

// ResponseWasEnciphered reports whether the most recent Unsecure call
// found and decrypted an enciphered data object (tag 87). It is
// read-only: callers cannot influence whether a response happens to be
// enciphered.
func (s *Session) ResponseWasEnciphered() bool { return s.rspEnc }

// Secure wraps cmd for transmission under secure messaging: its class
// byte gains the ISO "SM header not processed" indicator, its data (if
// any) becomes a DO81/DO87, its Ne becomes a DO97, and a DO8E MAC covers
// everything before it.
func (s *Session) Secure(cmd *apdu.Command) (*apdu.Command, error) {
	secured := *cmd
	secured.Class.SecureMessaging = apdu.SMHeaderNoProc

	// head is the command-header used both as MAC input and, for channel
	// >= 4, as the new data field's own prefix: 4 bytes (CLA INS P1 P2)
	// on channels 0-3, or the 6-byte "89 04 CLA' INS P1 P2" escape on
	// channels 4-19 (gemSpec_COS §13.2 step 4).
	var head []byte
	if secured.Class.Channel >= 4 {
		prefix, err := apdu.EscapePrefix(secured.Class, secured.Ins, secured.P1, secured.P2)
		if err != nil {
			return nil, &Error{Kind: KindSecureMessagingFailure, Op: "Secure", Err: err}
		}
		head = prefix
	} else {
		claByte, err := secured.Class.Encode()
		if err != nil {
			return nil, &Error{Kind: KindSecureMessagingFailure, Op: "Secure", Err: err}
		}
		head = []byte{claByte, secured.Ins, secured.P1, secured.P2}
	}

	var dos []bertlv.TLV

	if len(cmd.Data) > 0 {
		if s.cmdEnc {
			padded := s.Crypto.ISOPad(cmd.Data)
			enc, err := s.Crypto.Encipher(padded)
			if err != nil {
				return nil, &Error{Kind: KindSecureMessagingFailure, Op: "Secure", Err: err}
			}
			value := append([]byte{paddingIndicatorISO}, enc...)
			dos = append(dos, bertlv.TLV{Tag: tagEnciphered, Value: value})
		} else {
			dos = append(dos, bertlv.TLV{Tag: tagPlainData, Value: cmd.Data})
		}
	}

	if cmd.Ne > 0 {
		dos = append(dos, bertlv.TLV{Tag: tagLe, Value: encodeLe(cmd.Ne)})
	}

	tmp, err := bertlv.Encode(dos)
	if err != nil {
		return nil, &Error{Kind: KindSecureMessagingFailure, Op: "Secure", Err: err}
	}

	// §13.2 step 6: head is padded before the MAC only when the channel
	// needs the escape header and there is actually a protected-data/Le
	// payload to pad around; a bare head with nothing following it is
	// used unpadded.
	var macInput []byte
	if secured.Class.Channel <= 3 || len(tmp) == 0 {
		macInput = append(append([]byte{}, head...), tmp...)
	} else {
		macInput = append(s.Crypto.ISOPad(head), tmp...)
	}

	mac, err := s.Crypto.MAC(macInput)
	if err != nil {
		return nil, &Error{Kind: KindSecureMessagingFailure, Op: "Secure", Err: err}
	}
	dos = append(dos, bertlv.TLV{Tag: tagMAC, Value: mac})

	body, err := bertlv.Encode(dos)
	if err != nil {
		return nil, &Error{Kind: KindSecureMessagingFailure, Op: "Secure", Err: err}
	}

	// §13.2 step 8's "head ∥ tmp ∥ mac_do" for channel >= 4 is exactly
	// what Command.Bytes' own channel-escape produces from a plain
	// "tmp ∥ mac_do" data field on that channel, so it is left to Bytes
	// rather than built again here.
	secured.Data = body
	secured.Ne = 256
	return &secured, nil
}

// Unsecure verifies and unwraps a response APDU received under secure
// messaging, returning the plaintext response the caller would have
// seen without secure messaging.
func (s *Session) Unsecure(resp *apdu.Response) (*apdu.Response, error) {
	s.rspEnc = false

	if !resp.Status.IsOK() || len(resp.Data) == 0 {
		return resp, nil
	}

	dos, err := bertlv.Decode(resp.Data)
	if err != nil {
		return nil, &Error{Kind: KindSecureMessagingFailure, Op: "Unsecure", Err: err}
	}

	var macDO, dataDO, statusDO *bertlv.TLV
	var macCovered []bertlv.TLV
	for i := range dos {
		switch dos[i].Tag {
		case tagMAC:
			macDO = &dos[i]
		default:
			if dos[i].Tag == tagEnciphered || dos[i].Tag == tagPlainData {
				dataDO = &dos[i]
			}
			if dos[i].Tag == tagProcessingStatus {
				statusDO = &dos[i]
			}
			macCovered = append(macCovered, dos[i])
		}
	}

	if macDO == nil {
		return nil, &Error{Kind: KindSecureMessagingFailure, Op: "Unsecure",
			Err: fmt.Errorf("response missing MAC data object")}
	}

	macInput, err := bertlv.Encode(macCovered)
	if err != nil {
		return nil, &Error{Kind: KindSecureMessagingFailure, Op: "Unsecure", Err: err}
	}
	if err := s.Crypto.VerifyMAC(macInput, macDO.Value); err != nil {
		return nil, &Error{Kind: KindSecureMessagingFailure, Op: "Unsecure", Err: err}
	}

	plaintext := &apdu.Response{Status: resp.Status}
	if statusDO != nil && len(statusDO.Value) == 2 {
		plaintext.Status = apdu.NewStatusWord(statusDO.Value[0], statusDO.Value[1])
	}

	if dataDO != nil {
		switch dataDO.Tag {
		case tagEnciphered:
			if len(dataDO.Value) < 1 || dataDO.Value[0] != paddingIndicatorISO {
				return nil, &Error{Kind: KindSecureMessagingFailure, Op: "Unsecure",
					Err: fmt.Errorf("unsupported padding indicator in response data object")}
			}
			padded, err := s.Crypto.Decipher(dataDO.Value[1:])
			if err != nil {
				return nil, &Error{Kind: KindSecureMessagingFailure, Op: "Unsecure", Err: err}
			}
			unpadded, err := isoUnpad(padded)
			if err != nil {
				return nil, &Error{Kind: KindSecureMessagingFailure, Op: "Unsecure", Err: err}
			}
			plaintext.Data = unpadded
			s.rspEnc = true
		case tagPlainData:
			plaintext.Data = dataDO.Value
		}
	}

	return plaintext, nil
}

func encodeLe(ne int) []byte {
	if ne <= 256 {
		if ne == 256 {
			return []byte{0x00}
		}
		return []byte{byte(ne)}
	}
	if ne == 65536 {
		return []byte{0x00, 0x00}
	}
	return []byte{byte(ne >> 8), byte(ne)}
}
