// cmd_tokenize.go - tokenize Command: Debug-Ausgabe der Tokenisierung
package cmd

import (
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/alignforge/alignforge/tokenizer"
)

func newTokenizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokenize MODEL TEXT...",
		Short: "Tokenize text with a model's tokenizer",
		Args:  cobra.MinimumNArgs(2),
		RunE:  TokenizeHandler,
	}
	cmd.Flags().Bool("special", true, "Add BOS/EOS tokens")
	return cmd
}

// TokenizeHandler zeigt die Token-Zerlegung eines Textes
func TokenizeHandler(cmd *cobra.Command, args []string) error {
	tok, err := tokenizer.Load(args[0])
	if err != nil {
		return err
	}

	special, _ := cmd.Flags().GetBool("special")
	ids := tok.Encode(strings.Join(args[1:], " "), special)

	var data [][]string
	for _, id := range ids {
		piece := tok.Decode([]int32{id}, false)
		data = append(data, []string{strconv.Itoa(int(id)), strconv.Quote(piece)})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "TOKEN"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}
