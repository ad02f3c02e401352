package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gematik-go/cardlink/output"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to a card and print its PC/SC status",
	RunE: func(cmd *cobra.Command, args []string) error {
		col, c, err := connectCard()
		if err != nil {
			return err
		}
		defer col.Close()
		defer c.Disconnect()

		status, err := c.Status()
		if err != nil {
			return fmt.Errorf("card status: %w", err)
		}

		output.PrintReaderInfo(*status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
}
