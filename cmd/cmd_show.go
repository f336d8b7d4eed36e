// cmd_show.go - show Command: Rezept validieren und zusammenfassen
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/alignforge/alignforge/config"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show RECIPE",
		Short: "Validate a recipe and print its effective configuration",
		Args:  cobra.ExactArgs(1),
		RunE:  ShowHandler,
	}
}

// ShowHandler laedt ein Rezept und gibt die effektive Konfiguration aus.
// Defaults sind bereits angewendet; was hier steht, wird trainiert.
func ShowHandler(cmd *cobra.Command, args []string) error {
	recipe, err := config.Load(args[0])
	if err != nil {
		return err
	}

	recipe.WriteSummary(os.Stdout)
	return nil
}
