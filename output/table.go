// Package output renders reader, card-identity and certificate-chain
// results as terminal tables, in the same go-pretty idiom used
// throughout this project's tooling.
package output

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/gematik-go/cardlink/cardproxy"
	"github.com/gematik-go/cardlink/pcsc"
)

var (
	colorHeader  = text.Colors{text.FgCyan, text.Bold}
	colorLabel   = text.Colors{text.FgYellow}
	colorValue   = text.Colors{text.FgWhite}
	colorSuccess = text.Colors{text.FgGreen}
	colorError   = text.Colors{text.FgRed}
	colorWarn    = text.Colors{text.FgYellow}
)

func getTableStyle() table.Style {
	style := table.StyleRounded
	style.Color.Header = colorHeader
	style.Color.Row = text.Colors{text.FgWhite}
	style.Color.RowAlternate = text.Colors{text.FgHiWhite}
	style.Options.SeparateRows = false
	return style
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(getTableStyle())
	return t
}

// PrintReaderList renders one row per reader name, optionally annotated
// with whether a card is currently present.
func PrintReaderList(names []string, present map[string]bool) {
	t := newTable()
	t.AppendHeader(table.Row{"#", "Reader", "Card"})
	for i, name := range names {
		status := colorWarn.Sprint("absent")
		if present[name] {
			status = colorSuccess.Sprint("present")
		}
		t.AppendRow(table.Row{i + 1, colorLabel.Sprint(name), status})
	}
	t.Render()
}

// PrintReaderInfo renders a single reader's PC/SC status snapshot.
func PrintReaderInfo(status pcsc.CardStatus) {
	t := newTable()
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{colorLabel.Sprint("Reader"), status.Reader})
	t.AppendRow(table.Row{colorLabel.Sprint("State"), fmt.Sprintf("0x%04X", status.State)})
	t.AppendRow(table.Row{colorLabel.Sprint("Protocol"), protocolName(status.ActiveP)})
	t.AppendRow(table.Row{colorLabel.Sprint("ATR"), hex.EncodeToString(status.Atr)})
	t.Render()
}

func protocolName(p pcsc.Protocol) string {
	switch p {
	case pcsc.ProtocolT0:
		return "T=0"
	case pcsc.ProtocolT1:
		return "T=1"
	default:
		return "unknown"
	}
}

// PrintIdentity renders the fields a card-proxy boot sequence collected
// for one card personality.
func PrintIdentity(variantName string, id *cardproxy.Identity) {
	t := newTable()
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{colorLabel.Sprint("Card type"), colorValue.Sprint(variantName)})
	t.AppendRow(table.Row{colorLabel.Sprint("ICCSN"), hex.EncodeToString(id.ICCSN)})
	t.AppendRow(table.Row{colorLabel.Sprint("OS version"), hex.EncodeToString(id.OSVersion)})
	t.AppendRow(table.Row{colorLabel.Sprint("EF.Version2"), hex.EncodeToString(id.Version2)})
	t.AppendRow(table.Row{colorLabel.Sprint("Max APDU (cmd short)"), id.MaxAPDULen[0]})
	t.AppendRow(table.Row{colorLabel.Sprint("Max APDU (cmd extended)"), id.MaxAPDULen[1]})
	t.AppendRow(table.Row{colorLabel.Sprint("Max APDU (rsp short)"), id.MaxAPDULen[2]})
	t.AppendRow(table.Row{colorLabel.Sprint("Max APDU (rsp extended)"), id.MaxAPDULen[3]})
	t.AppendRow(table.Row{colorLabel.Sprint("CA certificate"), fmt.Sprintf("%d bytes", len(id.CACert.Value))})
	t.Render()
}

// PrintImportChainResult renders the outcome of a CV-certificate chain
// import: how many certificates were accepted before the error (if any).
func PrintImportChainResult(imported int, err error) {
	t := newTable()
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{colorLabel.Sprint("Certificates imported"), imported})
	if err != nil {
		t.AppendRow(table.Row{colorLabel.Sprint("Result"), colorError.Sprint(err.Error())})
	} else {
		t.AppendRow(table.Row{colorLabel.Sprint("Result"), colorSuccess.Sprint("trusted anchor reached")})
	}
	t.Render()
}
