package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gematik-go/cardlink/cardproxy"
	"github.com/gematik-go/cardlink/output"
)

var identityVariantName string

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Boot a card and print its identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		col, c, err := connectCard()
		if err != nil {
			return err
		}
		defer col.Close()
		defer c.Disconnect()

		variant, err := cardproxy.NewVariant(identityVariantName)
		if err != nil {
			return fmt.Errorf("unknown card variant %q (choices: %v): %w",
				identityVariantName, cardproxy.Variants(), err)
		}

		id, err := variant.Boot(c.Basic())
		if err != nil {
			return fmt.Errorf("boot %s: %w", variant.Name(), err)
		}

		output.PrintIdentity(variant.Name(), id)
		return nil
	},
}

func init() {
	identityCmd.Flags().StringVarP(&identityVariantName, "type", "t", "egk",
		fmt.Sprintf("card type (%v)", cardproxy.Variants()))
	rootCmd.AddCommand(identityCmd)
}
