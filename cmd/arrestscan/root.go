package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nao1215/arrestscan/internal/log"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for arrestscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arrestscan",
		Short: "Scrape county arrest reports into a spreadsheet",
		Long: `arrestscan collects the public arrest reports of the Sarasota County
Sheriff's Office for a date or a date range.

It opens the search page in headless Chrome, fills the date filter, reads
every result page, and uploads the normalized records to a Google Sheet
worksheet or writes them to a JSON, CSV, XLSX or Markdown file.

Every run is recorded in a local history database so later runs can
upload only records that were not seen before.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")

	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the logger for a command. Logs go to w, which is
// stderr outside of tests, so progress lines on stdout stay readable.
func setupLogger(cmd *cobra.Command, w io.Writer) *slog.Logger {
	verbose := getVerboseFlag(cmd)
	asJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		asJSON, _ = cmd.Root().PersistentFlags().GetBool("log-json") //nolint:errcheck // defaults to text
	}
	if asJSON {
		return log.NewSecureJSONLogger(w, verbose)
	}
	return log.NewSecureLogger(w, verbose)
}
