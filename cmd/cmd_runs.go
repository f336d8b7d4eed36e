// cmd_runs.go - runs Command: Trainingslaeufe auflisten
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/alignforge/alignforge/envconfig"
	"github.com/alignforge/alignforge/train"
)

func newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "runs",
		Aliases: []string{"ls"},
		Short:   "List training runs",
		Args:    cobra.MaximumNArgs(1),
		RunE:    RunsHandler,
	}
}

// shortID kuerzt eine Run-ID fuer die Tabellenausgabe
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// RunsHandler listet alle Runs aus dem Run-Store auf
func RunsHandler(cmd *cobra.Command, args []string) error {
	dbPath := filepath.Join(envconfig.Runs(), "runs.db")
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintln(os.Stderr, "no runs recorded yet")
		return nil
	}

	store, err := train.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns()
	if err != nil {
		return err
	}

	var data [][]string
	for _, r := range runs {
		if len(args) > 0 && !strings.HasPrefix(strings.ToLower(r.ID), strings.ToLower(args[0])) {
			continue
		}

		finished := "-"
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}

		data = append(data, []string{shortID(r.ID), r.Stage, filepath.Base(r.Model), r.Status, r.StartedAt.Local().Format("2006-01-02 15:04"), finished})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "STAGE", "MODEL", "STATUS", "STARTED", "DURATION"})
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
