// Command cardctl lists connected PC/SC readers, connects to a card,
// dumps its identity and imports CV-certificate chains.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gematik-go/cardlink/card"
	"github.com/gematik-go/cardlink/reader"
)

var (
	version = "0.1.0"

	readerName string
)

var rootCmd = &cobra.Command{
	Use:     "cardctl",
	Short:   "Generation-2 health-telematics smart card tool",
	Version: version,
	Long: `cardctl v` + version + `
Connect to German health-telematics generation-2 smart cards
(patient cards, professional cards, module cards) over PC/SC,
exchange secure-messaging-protected APDUs, and import
CV-certificate chains.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&readerName, "reader", "r", "",
		"reader name (default: auto-select if exactly one reader is present)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connectReader opens the PC/SC context, resolves readerName (or
// auto-selects the sole reader) and returns a reader.Reader ready to
// connect to a card.
func connectReader() (*reader.Collection, *reader.Reader, error) {
	col, err := reader.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open reader context: %w", err)
	}

	readers, err := col.List(reader.FilterAll)
	if err != nil {
		col.Close()
		return nil, nil, fmt.Errorf("list readers: %w", err)
	}
	if len(readers) == 0 {
		col.Close()
		return nil, nil, fmt.Errorf("no smart card readers found")
	}

	if readerName == "" {
		if len(readers) > 1 {
			col.Close()
			return nil, nil, fmt.Errorf("multiple readers found, use -r <name> to select one")
		}
		return col, readers[0], nil
	}

	for _, r := range readers {
		if r.Name() == readerName {
			return col, r, nil
		}
	}
	col.Close()
	return nil, nil, fmt.Errorf("reader %q not found", readerName)
}

func connectCard() (*reader.Collection, *card.Card, error) {
	col, r, err := connectReader()
	if err != nil {
		return nil, nil, err
	}
	c, err := card.Connect(r)
	if err != nil {
		col.Close()
		return nil, nil, fmt.Errorf("connect card: %w", err)
	}
	return col, c, nil
}
