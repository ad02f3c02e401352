package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gematik-go/cardlink/output"
	"github.com/gematik-go/cardlink/reader"
)

var listReadersCmd = &cobra.Command{
	Use:   "list-readers",
	Short: "List connected PC/SC readers",
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := reader.Open()
		if err != nil {
			return fmt.Errorf("open reader context: %w", err)
		}
		defer col.Close()

		readers, err := col.List(reader.FilterAll)
		if err != nil {
			return fmt.Errorf("list readers: %w", err)
		}

		names := make([]string, len(readers))
		present := make(map[string]bool, len(readers))
		for i, r := range readers {
			names[i] = r.Name()
			hasCard, err := r.CardPresent()
			if err != nil {
				return fmt.Errorf("query %q: %w", r.Name(), err)
			}
			present[r.Name()] = hasCard
		}

		output.PrintReaderList(names, present)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listReadersCmd)
}
