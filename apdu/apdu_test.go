package apdu

import (
	"bytes"
	"testing"
)

func TestCommandBytesCases(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want []byte
	}{
		{
			name: "case1 no data no response",
			cmd:  Command{Ins: 0x04, P1: 0x00, P2: 0x00},
			want: []byte{0x00, 0x04, 0x00, 0x00},
		},
		{
			name: "case2S short Le",
			cmd:  Command{Ins: 0xB0, P1: 0x00, P2: 0x00, Ne: 0x10},
			want: []byte{0x00, 0xB0, 0x00, 0x00, 0x10},
		},
		{
			name: "case2S wildcard 256 encodes as 00",
			cmd:  Command{Ins: 0xB0, P1: 0x00, P2: 0x00, Ne: 256},
			want: []byte{0x00, 0xB0, 0x00, 0x00, 0x00},
		},
		{
			name: "case3S data no response",
			cmd:  Command{Ins: 0xA4, P1: 0x04, P2: 0x0C, Data: []byte{0xD2, 0x76}},
			want: []byte{0x00, 0xA4, 0x04, 0x0C, 0x02, 0xD2, 0x76},
		},
		{
			name: "case4S data and response",
			cmd:  Command{Ins: 0xA4, P1: 0x04, P2: 0x0C, Data: []byte{0xD2, 0x76}, Ne: 256},
			want: []byte{0x00, 0xA4, 0x04, 0x0C, 0x02, 0xD2, 0x76, 0x00},
		},
		{
			name: "case2E forced by large Ne",
			cmd:  Command{Ins: 0xB0, P1: 0x00, P2: 0x00, Ne: 65536},
			want: []byte{0x00, 0xB0, 0x00, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name: "case4E forced by long data",
			cmd:  Command{Ins: 0xD6, P1: 0x00, P2: 0x00, Data: bytes.Repeat([]byte{0xAA}, 256), Ne: 10},
			want: append(append([]byte{0x00, 0xD6, 0x00, 0x00, 0x00, 0x01, 0x00}, bytes.Repeat([]byte{0xAA}, 256)...), 0x00, 0x0A),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Bytes()
			if err != nil {
				t.Fatalf("Bytes() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Bytes() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestCommandRoundTripIsMinimal(t *testing.T) {
	orig := Command{Ins: 0xA4, P1: 0x04, P2: 0x0C, Data: []byte{0xD2, 0x76, 0x00, 0x01}, Ne: 256}
	raw, err := orig.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	parsed, err := ParseCommand(raw)
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}

	reencoded, err := parsed.Bytes()
	if err != nil {
		t.Fatalf("re-encode error = %v", err)
	}
	if !bytes.Equal(raw, reencoded) {
		t.Errorf("round trip not minimal: % X != % X", raw, reencoded)
	}
}

// S4: a 3-byte body starting with 00 is case 2E (extended Le, no data),
// never extended-Lc-with-data: a zero-length extended Lc isn't valid, so
// the leading 00 plus exactly two trailing bytes is unambiguous.
func TestParseCommandCase2ENoData(t *testing.T) {
	cmd, err := ParseCommand([]byte{0x00, 0xB0, 0x81, 0x02, 0x00, 0x00, 0x03})
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}
	if cmd.Ne != 3 {
		t.Errorf("Ne = %d, want 3", cmd.Ne)
	}
	if len(cmd.Data) != 0 {
		t.Errorf("Data = % X, want empty", cmd.Data)
	}
}

func TestCommandRoundTripExtendedWildcardNoData(t *testing.T) {
	orig := Command{Ins: 0xB0, P1: 0x00, P2: 0x00, Ne: 65536}
	raw, err := orig.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	parsed, err := ParseCommand(raw)
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}
	if parsed.Ne != 65536 {
		t.Errorf("round trip Ne = %d, want 65536", parsed.Ne)
	}
}

func TestClassChannelEncoding(t *testing.T) {
	tests := []struct {
		name    string
		class   Class
		wantCla byte
	}{
		{"channel 0 basic", Class{Channel: 0}, 0x00},
		{"channel 3 first interindustry", Class{Channel: 3}, 0x03},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.class.Encode()
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if got != tt.wantCla {
				t.Errorf("Encode() = %02X, want %02X", got, tt.wantCla)
			}
			decoded, err := DecodeClass(got)
			if err != nil {
				t.Fatalf("DecodeClass() error = %v", err)
			}
			if decoded.Channel != tt.class.Channel {
				t.Errorf("round trip channel = %d, want %d", decoded.Channel, tt.class.Channel)
			}
		})
	}
}

func TestClassEncodeRejectsChannelAbove3(t *testing.T) {
	_, err := Class{Channel: 4}.Encode()
	if err == nil {
		t.Fatal("expected error for channel 4 (not encodable as a bare CLA byte)")
	}
}

// S3: encoding class-byte 0x00 on channel 5 yields the outer data-field
// prefix "89 04 20 ...", not a modified CLA byte.
func TestEscapePrefixChannel5(t *testing.T) {
	prefix, err := EscapePrefix(Class{Channel: 5}, 0xB0, 0x81, 0x02)
	if err != nil {
		t.Fatalf("EscapePrefix() error = %v", err)
	}
	want := []byte{0x89, 0x04, 0x20, 0xB0, 0x81, 0x02}
	if !bytes.Equal(prefix, want) {
		t.Errorf("EscapePrefix() = % X, want % X", prefix, want)
	}
}

func TestEscapePrefixRejectsChannelBelow4(t *testing.T) {
	if _, err := EscapePrefix(Class{Channel: 3}, 0xB0, 0x00, 0x00); err == nil {
		t.Fatal("expected error for channel 3")
	}
}

func TestCommandBytesEscapesHighChannel(t *testing.T) {
	cmd := Command{Class: Class{Channel: 5}, Ins: 0xB0, P1: 0x81, P2: 0x02, Ne: 3}
	raw, err := cmd.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	// outer CLA carries no channel information; the escape prefix does.
	want := []byte{0x00, 0xB0, 0x81, 0x02, 0x06, 0x89, 0x04, 0x20, 0xB0, 0x81, 0x02, 0x03}
	if !bytes.Equal(raw, want) {
		t.Errorf("Bytes() = % X, want % X", raw, want)
	}
}

func TestCommandBytesRejectsChannelOutOfRange(t *testing.T) {
	cmd := Command{Class: Class{Channel: 20}, Ins: 0xB0}
	if _, err := cmd.Bytes(); err == nil {
		t.Fatal("expected error for channel 20")
	}
}

func TestManageChannelRejected(t *testing.T) {
	cmd := Command{Ins: InsManageChannel, P1: 0x00, P2: 0x00}
	if !cmd.IsManageChannel() {
		t.Error("IsManageChannel() = false, want true")
	}
}

func TestParseResponse(t *testing.T) {
	resp, err := ParseResponse([]byte{0x01, 0x02, 0x90, 0x00})
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if !resp.Status.IsOK() {
		t.Errorf("IsOK() = false, want true")
	}
	if !bytes.Equal(resp.Data, []byte{0x01, 0x02}) {
		t.Errorf("Data = % X, want 01 02", resp.Data)
	}
	if !bytes.Equal(resp.Bytes(), []byte{0x01, 0x02, 0x90, 0x00}) {
		t.Errorf("Bytes() round trip mismatch")
	}
}

func TestStatusWordHelpers(t *testing.T) {
	if !NewStatusWord(0x61, 0x10).HasMoreData() {
		t.Error("HasMoreData() = false for 61XX")
	}
	if !NewStatusWord(0x6C, 0x20).NeedsRetry() {
		t.Error("NeedsRetry() = false for 6CXX")
	}
	if NewStatusWord(0x90, 0x00).HasMoreData() {
		t.Error("HasMoreData() = true for 9000")
	}
}
