// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/alignforge/alignforge/envconfig"
	"github.com/alignforge/alignforge/version"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "alignforge",
		Short:         "Fine-tuning pipeline for language and vision-language models",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Println("alignforge version", version.Version)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	// Commands erstellen
	sftCmd := newSFTCmd()
	dpoCmd := newDPOCmd()
	showCmd := newShowCmd()
	runsCmd := newRunsCmd()
	tokenizeCmd := newTokenizeCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	envs := []envconfig.EnvVar{envVars["ALIGNFORGE_RUNS"]}

	for _, cmd := range []*cobra.Command{
		sftCmd,
		dpoCmd,
		showCmd,
		runsCmd,
		tokenizeCmd,
	} {
		switch cmd {
		case sftCmd, dpoCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["ALIGNFORGE_DEBUG"],
				envVars["ALIGNFORGE_HOST"],
				envVars["ALIGNFORGE_RUNS"],
				envVars["ALIGNFORGE_CACHE"],
				envVars["ALIGNFORGE_NUM_WORKERS"],
				envVars["ALIGNFORGE_NOSTATUS"],
				envVars["ALIGNFORGE_KEEP_FAILED"],
			})
		default:
			appendEnvDocs(cmd, envs)
		}
	}

	rootCmd.AddCommand(
		sftCmd,
		dpoCmd,
		showCmd,
		runsCmd,
		tokenizeCmd,
	)

	return rootCmd
}
