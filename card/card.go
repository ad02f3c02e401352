// Package card implements the card-session handle and its logical-channel
// multiplexer: the basic channel is always open and untracked, channels
// 1-19 are opened/closed explicitly and tracked, and every transmit path
// checks card liveness before touching the native handle.
package card

import (
	"fmt"
	"sync"
	"time"

	"github.com/gematik-go/cardlink/apdu"
	"github.com/gematik-go/cardlink/pcsc"
	"github.com/gematik-go/cardlink/reader"
)

// transport is the native-handle surface Card needs. *pcsc.Card satisfies
// it; tests substitute a fake to exercise channel/lifecycle logic without
// a physical reader.
type transport interface {
	Transmit(cmd []byte) ([]byte, time.Duration, error)
	Disconnect(d pcsc.Disposition) error
	Reconnect(mode pcsc.ShareMode, proto pcsc.Protocol, init pcsc.Disposition) error
	Status() (*pcsc.CardStatus, error)
}

// Kind classifies a card-layer error.
type Kind int

const (
	KindUnknown Kind = iota
	KindCardRemoved
	KindLifecycle
	KindInvalidApdu
	KindChannelUnavailable
)

// Error is a Kind-tagged card error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("card: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

const (
	insManageChannel = 0x70
	maxChannel       = 19
)

// Card is a live connection to one card. All transmits funnel through its
// mutex, which also guards the open logical-channel set.
type Card struct {
	mu     sync.Mutex
	native transport
	reader *reader.Reader
	open   map[uint8]*Channel
	basic  *Channel
	dead   bool
}

// Connect opens a card connection on r and returns a Card with its basic
// channel ready to use.
func Connect(r *reader.Reader) (*Card, error) {
	native, err := r.Connect()
	if err != nil {
		return nil, &Error{Kind: KindCardRemoved, Op: "Connect", Err: err}
	}
	c := &Card{native: native, reader: r, open: make(map[uint8]*Channel)}
	c.basic = &Channel{card: c, number: 0}
	return c, nil
}

// Basic returns the always-open basic channel (channel 0).
func (c *Card) Basic() *Channel { return c.basic }

// Status returns the card's current PC/SC status (ATR, active
// protocol, reader state).
func (c *Card) Status() (*pcsc.CardStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkAlive("Status"); err != nil {
		return nil, err
	}
	status, err := c.native.Status()
	if err != nil {
		return nil, &Error{Kind: KindCardRemoved, Op: "Status", Err: err}
	}
	return status, nil
}

// Channel returns the tracked channel for number, if currently open.
func (c *Card) Channel(number uint8) (*Channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.open[number]
	return ch, ok
}

// IsValid reports whether the card handle is still usable.
func (c *Card) IsValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.dead
}

func (c *Card) checkAlive(op string) error {
	if c.dead {
		return &Error{Kind: KindLifecycle, Op: op, Err: fmt.Errorf("card was disconnected")}
	}
	return nil
}

// OpenLogicalChannel requests a new logical channel via MANAGE CHANNEL
// OPEN on the basic channel and returns the resulting tracked Channel.
// Channel 0 is never returned: the card assigns the lowest free channel
// in [1,19].
func (c *Card) OpenLogicalChannel() (*Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkAlive("OpenLogicalChannel"); err != nil {
		return nil, err
	}

	cmd := &apdu.Command{Ins: insManageChannel, P1: 0x00, P2: 0x00, Ne: 1}
	resp, err := c.transmitLocked(cmd)
	if err != nil {
		return nil, err
	}
	if !resp.Status.IsOK() || len(resp.Data) != 1 {
		return nil, &Error{Kind: KindChannelUnavailable, Op: "OpenLogicalChannel",
			Err: fmt.Errorf("unexpected MANAGE CHANNEL OPEN response: %s", resp.Status)}
	}

	number := resp.Data[0]
	if number == 0 || number > maxChannel {
		return nil, &Error{Kind: KindChannelUnavailable, Op: "OpenLogicalChannel",
			Err: fmt.Errorf("card assigned out-of-range channel %d", number)}
	}

	ch := &Channel{card: c, number: number}
	c.open[number] = ch
	return ch, nil
}

// closeChannel sends MANAGE CHANNEL CLOSE for number and evicts it from
// the open set. Called only via Channel.Close.
func (c *Card) closeChannel(number uint8) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkAlive("CloseChannel"); err != nil {
		return err
	}

	cmd := &apdu.Command{Class: apdu.Class{Channel: number}, Ins: insManageChannel, P1: 0x80, P2: number}
	resp, err := c.transmitLocked(cmd)
	delete(c.open, number)
	if err != nil {
		return err
	}
	if !resp.Status.IsOK() {
		return &Error{Kind: KindChannelUnavailable, Op: "CloseChannel",
			Err: fmt.Errorf("card rejected MANAGE CHANNEL CLOSE: %s", resp.Status)}
	}
	return nil
}

// transmit is the channel-facing entry point: it rejects MANAGE CHANNEL
// from any caller (channel lifecycle is this package's job alone),
// rewrites the command's class byte for the channel number, and checks
// liveness before every native transmit.
func (c *Card) transmit(number uint8, cmd *apdu.Command) (*apdu.Response, error) {
	if cmd.IsManageChannel() {
		return nil, &Error{Kind: KindInvalidApdu, Op: "Transmit",
			Err: fmt.Errorf("MANAGE CHANNEL must go through Card.OpenLogicalChannel/Channel.Close")}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkAlive("Transmit"); err != nil {
		return nil, err
	}
	cmd.Class.Channel = number
	return c.transmitLocked(cmd)
}

// transmitLocked assumes c.mu is held and c is alive.
func (c *Card) transmitLocked(cmd *apdu.Command) (*apdu.Response, error) {
	raw, err := cmd.Bytes()
	if err != nil {
		return nil, &Error{Kind: KindInvalidApdu, Op: "Transmit", Err: err}
	}

	rawResp, _, err := c.native.Transmit(raw)
	if err != nil {
		c.dead = true
		return nil, &Error{Kind: KindCardRemoved, Op: "Transmit", Err: err}
	}

	resp, err := apdu.ParseResponse(rawResp)
	if err != nil {
		return nil, &Error{Kind: KindInvalidApdu, Op: "Transmit", Err: err}
	}

	if resp.Status.HasMoreData() {
		get := &apdu.Command{Class: cmd.Class, Ins: 0xC0, Ne: int(resp.Status.SW2())}
		more, err := c.transmitLocked(get)
		if err != nil {
			return nil, err
		}
		resp.Data = append(resp.Data, more.Data...)
		resp.Status = more.Status
	} else if resp.Status.NeedsRetry() {
		retry := *cmd
		retry.Ne = int(resp.Status.SW2())
		return c.transmitLocked(&retry)
	}

	return resp, nil
}

// Reset performs a warm reset, or a cold reset (card unpowered) when cold
// is true, re-opening the basic channel's sharing mode and protocol. Any tracked logical channels are implicitly closed
// by the card and forgotten here.
func (c *Card) Reset(cold bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkAlive("Reset"); err != nil {
		return err
	}
	disp := pcsc.ResetCard
	if cold {
		disp = pcsc.UnpowerCard
	}
	if err := c.native.Reconnect(pcsc.ShareShared, pcsc.ProtocolAny, disp); err != nil {
		c.dead = true
		return &Error{Kind: KindCardRemoved, Op: "Reset", Err: err}
	}
	c.open = make(map[uint8]*Channel)
	return nil
}

// Disconnect releases the card handle. Idempotent: a second call
// returns nil rather than erroring, matching the card lifecycle
// invariant that disconnect is safe to call more than once.
func (c *Card) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead {
		return nil
	}
	c.dead = true
	return c.native.Disconnect(pcsc.LeaveCard)
}

// Channel is one logical channel on a Card. All transmits on a Channel
// are serialized through the owning Card's mutex.
type Channel struct {
	card   *Card
	number uint8
}

// Number returns the ISO/IEC 7816-4 logical channel number (0-19).
func (ch *Channel) Number() uint8 { return ch.number }

// Transmit sends cmd on this channel, rewriting its class byte for the
// channel number and following 61XX/6CXX chaining automatically.
func (ch *Channel) Transmit(cmd *apdu.Command) (*apdu.Response, error) {
	return ch.card.transmit(ch.number, cmd)
}

// Close closes a non-basic channel. Closing the basic channel (number 0)
// is a no-op: it is never tracked and never explicitly closeable.
func (ch *Channel) Close() error {
	if ch.number == 0 {
		return nil
	}
	return ch.card.closeChannel(ch.number)
}
