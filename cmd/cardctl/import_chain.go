package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gematik-go/cardlink/cardproxy"
	"github.com/gematik-go/cardlink/cvc"
	"github.com/gematik-go/cardlink/output"
)

var importChainVariantName string

var importChainCmd = &cobra.Command{
	Use:   "import-chain <cert-file>...",
	Short: "Import a CV-certificate chain onto a card",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chain := make([]cvc.Certificate, 0, len(args))
		for _, path := range args {
			value, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			if decoded, err := hex.DecodeString(strings.TrimSpace(string(value))); err == nil {
				value = decoded
			}
			car := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			chain = append(chain, cvc.Certificate{CAR: car, Value: value})
		}

		col, c, err := connectCard()
		if err != nil {
			return err
		}
		defer col.Close()
		defer c.Disconnect()

		variant, err := cardproxy.NewVariant(importChainVariantName)
		if err != nil {
			return fmt.Errorf("unknown card variant %q: %w", importChainVariantName, err)
		}
		if _, err := variant.Boot(c.Basic()); err != nil {
			return fmt.Errorf("boot %s: %w", variant.Name(), err)
		}

		imported, importErr := cvc.ImportChain(c.Basic(), chain)
		output.PrintImportChainResult(imported, importErr)
		return importErr
	},
}

func init() {
	importChainCmd.Flags().StringVarP(&importChainVariantName, "type", "t", "egk",
		fmt.Sprintf("card type (%v)", cardproxy.Variants()))
	rootCmd.AddCommand(importChainCmd)
}
