// Package apdu implements the ISO/IEC 7816-4 command/response APDU model:
// case 1/2S/2E/3S/3E/4S/4E encoding with minimal re-encoding, and the
// logical-channel class-byte rewrite (channels 0-3 inline, channels 4-19
// via the "89 04" escape form).
package apdu

import (
	"bytes"
	"fmt"
)

const (
	// InsManageChannel is rejected by card.Channel.Transmit, the only path
	// that accepts a caller's command (card.Card has no raw-bytes transmit):
	// channel lifecycle is owned by card.Card, never by a caller smuggling
	// the command through the data path.
	InsManageChannel = 0x70

	maxShortLc = 255
	maxShortLe = 256
	maxExtLc   = 65535
	maxExtLe   = 65536
)

// Command is the uniform command-APDU model. Ne is the expected response
// length: 0 means no response data is expected (case 1/3), maxShortLe or
// maxExtLe encode the "give me everything" wildcard.
type Command struct {
	Class Class
	Ins   byte
	P1    byte
	P2    byte
	Data  []byte
	Ne    int
}

// IsManageChannel reports whether this command is MANAGE CHANNEL, which
// card.Channel refuses to transmit on behalf of a caller.
func (c *Command) IsManageChannel() bool { return c.Ins == InsManageChannel }

// Bytes encodes the command into its minimal wire form: short Lc/Le unless
// Nc exceeds 255 or Ne exceeds 256 forces extended encoding.
func (c *Command) Bytes() ([]byte, error) {
	wireClass := c.Class
	data := c.Data

	if c.Class.Channel > 19 {
		return nil, fmt.Errorf("apdu: logical channel %d out of range (max 19)", c.Class.Channel)
	}
	if c.Class.Channel >= 4 {
		prefix, err := EscapePrefix(c.Class, c.Ins, c.P1, c.P2)
		if err != nil {
			return nil, fmt.Errorf("apdu: encode channel escape: %w", err)
		}
		wireClass.Channel = 0
		data = append(append([]byte{}, prefix...), c.Data...)
	}

	cla, err := wireClass.Encode()
	if err != nil {
		return nil, fmt.Errorf("apdu: encode class: %w", err)
	}

	nc := len(data)
	ne := c.Ne
	if nc > maxExtLc {
		return nil, fmt.Errorf("apdu: command data too long (%d bytes)", nc)
	}
	if ne > maxExtLe {
		return nil, fmt.Errorf("apdu: expected response length too long (%d)", ne)
	}

	extended := nc > maxShortLc || ne > maxShortLe

	buf := new(bytes.Buffer)
	buf.WriteByte(cla)
	buf.WriteByte(c.Ins)
	buf.WriteByte(c.P1)
	buf.WriteByte(c.P2)

	if nc > 0 {
		if !extended {
			buf.WriteByte(byte(nc))
		} else {
			buf.WriteByte(0x00)
			buf.WriteByte(byte(nc >> 8))
			buf.WriteByte(byte(nc))
		}
		buf.Write(data)
	}

	if ne > 0 {
		if !extended {
			if ne == maxShortLe {
				buf.WriteByte(0x00)
			} else {
				buf.WriteByte(byte(ne))
			}
			return buf.Bytes(), nil
		}
		if nc == 0 {
			buf.WriteByte(0x00)
		}
		if ne == maxExtLe {
			buf.WriteByte(0x00)
			buf.WriteByte(0x00)
		} else {
			buf.WriteByte(byte(ne >> 8))
			buf.WriteByte(byte(ne))
		}
	}

	return buf.Bytes(), nil
}

// ParseCommand decodes a raw command APDU back into a Command. It accepts
// every ISO case (1, 2S/2E, 3S/3E, 4S/4E) and infers Ne from the trailing
// length field the same way a card's T=1 layer would.
func ParseCommand(raw []byte) (*Command, error) {
	if len(raw) < 4 {
		return nil, fmt.Errorf("apdu: command too short (%d bytes)", len(raw))
	}

	class, err := DecodeClass(raw[0])
	if err != nil {
		return nil, err
	}
	cmd := &Command{Class: class, Ins: raw[1], P1: raw[2], P2: raw[3]}

	body := raw[4:]
	switch len(body) {
	case 0: // case 1
		return cmd, nil
	case 1: // case 2S
		cmd.Ne = shortLe(body[0])
		return cmd, nil
	case 3:
		if body[0] == 0x00 { // case 2E: extended Le only, no data (Lc=0 is never
			cmd.Ne = extLe(body[1], body[2]) // valid in extended form, so this is unambiguous)
			return cmd, nil
		}
	}

	if body[0] != 0x00 { // case 3S/4S
		lc := int(body[0])
		if len(body) < 1+lc {
			return nil, fmt.Errorf("apdu: truncated short-Lc data field")
		}
		cmd.Data = append([]byte{}, body[1:1+lc]...)
		rest := body[1+lc:]
		switch len(rest) {
		case 0:
			return cmd, nil
		case 1:
			cmd.Ne = shortLe(rest[0])
			return cmd, nil
		}
		return nil, fmt.Errorf("apdu: malformed short-form command trailer")
	}

	// case 3E/4E, or case 2E misdetected above already handled
	if len(body) < 3 {
		return nil, fmt.Errorf("apdu: truncated extended-Lc prefix")
	}
	lc := int(body[1])<<8 | int(body[2])
	if len(body) < 3+lc {
		return nil, fmt.Errorf("apdu: truncated extended-Lc data field")
	}
	cmd.Data = append([]byte{}, body[3:3+lc]...)
	rest := body[3+lc:]
	switch len(rest) {
	case 0:
		return cmd, nil
	case 2:
		cmd.Ne = extLe(rest[0], rest[1])
		return cmd, nil
	}
	return nil, fmt.Errorf("apdu: malformed extended-form command trailer")
}

func shortLe(b byte) int {
	if b == 0x00 {
		return maxShortLe
	}
	return int(b)
}

func extLe(hi, lo byte) int {
	v := int(hi)<<8 | int(lo)
	if v == 0 {
		return maxExtLe
	}
	return v
}

// Response is the parsed response APDU: body data plus the mandatory
// two-byte trailer.
type Response struct {
	Data   []byte
	Status StatusWord
}

// ParseResponse splits raw response bytes into data and trailer.
func ParseResponse(raw []byte) (*Response, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("apdu: response too short (%d bytes)", len(raw))
	}
	split := len(raw) - 2
	return &Response{
		Data:   append([]byte{}, raw[:split]...),
		Status: NewStatusWord(raw[split], raw[split+1]),
	}, nil
}

// Bytes re-serializes the response into its wire form: data followed by
// SW1 SW2.
func (r *Response) Bytes() []byte {
	out := make([]byte, 0, len(r.Data)+2)
	out = append(out, r.Data...)
	out = append(out, r.Status.SW1(), r.Status.SW2())
	return out
}
