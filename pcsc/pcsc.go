// Package pcsc is a thin, trace-logged façade over the platform PC/SC
// resource manager (WinSCard.dll / PCSC.framework / libpcsclite), bound
// through github.com/ebfe/scard. It owns the resource-manager handle
// lifecycle, reader enumeration, status-change polling and raw APDU
// transmission; everything above it (reader, card, sm) is pure Go.
package pcsc

import (
	"fmt"
	"time"

	"github.com/ebfe/scard"

	"github.com/gematik-go/cardlink/internal/telemetry"
)

// Kind classifies a pcsc error into the vocabulary callers branch on,
// independent of the underlying platform's error string.
type Kind int

const (
	KindUnknown Kind = iota
	KindNoService
	KindEstablishContextFailed
	KindNoReadersAvailable
	KindReaderUnavailable
	KindUnknownReader
	KindUnsupportedProtocol
	KindNoSmartCard
	KindProtoMismatch
	KindCardRemoved
	KindInvalidArgument
)

// Error is a Kind-tagged error. Use errors.As to recover the Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("pcsc: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Scope mirrors scard's context scope (user vs. system).
type Scope = scard.Scope

// ShareMode mirrors scard's sharing mode (exclusive, shared, direct).
type ShareMode = scard.ShareMode

// Protocol mirrors scard's protocol bitmask (T=0, T=1, raw, any).
type Protocol = scard.Protocol

// Disposition mirrors scard's disconnect/reconnect disposition.
type Disposition = scard.Disposition

const (
	ScopeUser   = scard.ScopeUser
	ScopeSystem = scard.ScopeSystem

	ShareExclusive = scard.ShareExclusive
	ShareShared    = scard.ShareShared
	ShareDirect    = scard.ShareDirect

	ProtocolT0  = scard.ProtocolT0
	ProtocolT1  = scard.ProtocolT1
	ProtocolAny = scard.ProtocolAny

	LeaveCard   = scard.LeaveCard
	ResetCard   = scard.ResetCard
	UnpowerCard = scard.UnpowerCard
	EjectCard   = scard.EjectCard
)

// State is the 12-flag reader-state bitmask from spec.md's data model; the
// upper 16 bits of the native value are an opaque event counter this
// package strips off.
type State uint16

const (
	StateUnaware     State = 0x0000
	StateIgnore      State = 0x0001
	StateChanged     State = 0x0002
	StateUnknown     State = 0x0004
	StateUnavailable State = 0x0008
	StateEmpty       State = 0x0010
	StatePresent     State = 0x0020
	StateAtrMatch    State = 0x0040
	StateExclusive   State = 0x0080
	StateInUse       State = 0x0100
	StateMute        State = 0x0200
	StateUnpowered   State = 0x0400
)

func toNativeState(s State) scard.StateFlag { return scard.StateFlag(s) }
func fromNativeState(s scard.StateFlag) State {
	return State(uint16(s) & 0x0FFF)
}

// ReaderState is one entry of a GetStatusChange call: the reader name, the
// state the caller last observed, and (after the call returns) the state
// the resource manager now reports plus the current ATR.
type ReaderState struct {
	Reader       string
	CurrentState State
	EventState   State
	Atr          []byte
}

// Context owns one PC/SC resource-manager handle.
type Context struct {
	native *scard.Context
}

// EstablishContext opens a new resource-manager context.
func EstablishContext() (*Context, error) {
	native, err := telemetry.Call("pcsc.EstablishContext", func() (*scard.Context, error) {
		return scard.EstablishContext()
	})
	if err != nil {
		return nil, wrap(KindEstablishContextFailed, "EstablishContext", err)
	}
	return &Context{native: native}, nil
}

// Release closes the resource-manager context. Safe to call more than
// once.
func (c *Context) Release() error {
	if c.native == nil {
		return nil
	}
	_, err := telemetry.Call("pcsc.Release", func() (struct{}, error) {
		return struct{}{}, c.native.Release()
	})
	c.native = nil
	return err
}

// ListReaders returns every reader name the resource manager currently
// surfaces. An empty, non-error result means no readers are attached.
func (c *Context) ListReaders() ([]string, error) {
	readers, err := telemetry.Call("pcsc.ListReaders", func() ([]string, error) {
		return c.native.ListReaders()
	})
	if err != nil {
		return nil, wrap(KindNoReadersAvailable, "ListReaders", err)
	}
	return readers, nil
}

// GetStatusChange blocks until one of readerStates changes or timeout
// elapses, mutating each entry's EventState/Atr in place exactly as the
// native call does. A timeout of 0 polls once without blocking.
func (c *Context) GetStatusChange(readerStates []ReaderState, timeout time.Duration) error {
	native := make([]scard.ReaderState, len(readerStates))
	for i, rs := range readerStates {
		native[i] = scard.ReaderState{
			Reader:       rs.Reader,
			CurrentState: toNativeState(rs.CurrentState),
		}
	}

	_, err := telemetry.Call("pcsc.GetStatusChange", func() (struct{}, error) {
		return struct{}{}, c.native.GetStatusChange(native, timeout)
	}, "readers", len(readerStates), "timeout", timeout)

	for i := range native {
		readerStates[i].EventState = fromNativeState(native[i].EventState)
		readerStates[i].Atr = native[i].Atr
	}

	if err != nil {
		return wrap(KindUnknown, "GetStatusChange", err)
	}
	return nil
}

// Connect opens a card connection on the named reader.
func (c *Context) Connect(reader string, mode ShareMode, proto Protocol) (*Card, error) {
	native, err := telemetry.Call("pcsc.Connect", func() (*scard.Card, error) {
		return c.native.Connect(reader, mode, proto)
	}, "reader", reader)
	if err != nil {
		return nil, wrap(KindNoSmartCard, "Connect", err)
	}
	return &Card{native: native, reader: reader}, nil
}

// CardStatus is the subset of scard.CardStatus this module consumes.
type CardStatus struct {
	Reader   string
	State    uint32
	ActiveP  Protocol
	Atr      []byte
}

// Card wraps one connected card handle.
type Card struct {
	native *scard.Card
	reader string
}

// Status queries the card's current reader name, state and ATR.
func (c *Card) Status() (*CardStatus, error) {
	st, err := telemetry.Call("pcsc.Status", func() (scard.CardStatus, error) {
		return c.native.Status()
	})
	if err != nil {
		return nil, wrap(KindCardRemoved, "Status", err)
	}
	return &CardStatus{
		Reader:  st.Reader,
		State:   uint32(st.State),
		ActiveP: st.ActiveProtocol,
		Atr:     st.Atr,
	}, nil
}

// Transmit sends a raw APDU and returns the raw response plus elapsed
// time, mapping a removed card to KindCardRemoved.
func (c *Card) Transmit(cmd []byte) ([]byte, time.Duration, error) {
	start := time.Now()
	resp, err := telemetry.Call("pcsc.Transmit", func() ([]byte, error) {
		return c.native.Transmit(cmd)
	}, "reader", c.reader, "bytes", len(cmd))
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, wrap(KindCardRemoved, "Transmit", err)
	}
	return resp, elapsed, nil
}

// Disconnect releases the card handle with the given disposition. Safe to
// call more than once.
func (c *Card) Disconnect(d Disposition) error {
	if c.native == nil {
		return nil
	}
	_, err := telemetry.Call("pcsc.Disconnect", func() (struct{}, error) {
		return struct{}{}, c.native.Disconnect(d)
	}, "reader", c.reader)
	c.native = nil
	return err
}

// Reconnect performs a warm (ResetCard) or cold (UnpowerCard) reset,
// re-establishing sharing mode and protocol.
func (c *Card) Reconnect(mode ShareMode, proto Protocol, init Disposition) error {
	_, err := telemetry.Call("pcsc.Reconnect", func() (struct{}, error) {
		return struct{}{}, c.native.Reconnect(mode, proto, init)
	}, "reader", c.reader)
	if err != nil {
		return wrap(KindCardRemoved, "Reconnect", err)
	}
	return nil
}

// DecodeMultiString splits a platform multi-string buffer (consecutive
// NUL-terminated strings ending in a double NUL) into its component
// strings. ebfe/scard already returns split reader names; this is
// exercised directly against raw buffers such as those a caller might
// receive from a lower-level SCardListReaders binding.
func DecodeMultiString(buf []byte) ([]string, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	var out []string
	start := 0
	terminated := false
	for i := 0; i < len(buf); i++ {
		if buf[i] != 0 {
			continue
		}
		if i == start {
			terminated = true // double NUL: terminator reached
			break
		}
		out = append(out, string(buf[start:i]))
		start = i + 1
	}
	if !terminated {
		return nil, wrap(KindInvalidArgument, "DecodeMultiString",
			fmt.Errorf("multi-string buffer missing terminating empty string"))
	}
	return out, nil
}
