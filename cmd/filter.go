package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/wavecut/internal/catalog"
	"github.com/zjrosen/wavecut/internal/log"
)

var (
	filterInput  string
	filterOutput string
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter the catalog listing into the event table",
	Long: `Parse the catalog text listing, keep events inside the configured latitude,
longitude, magnitude and depth ranges, and write the filtered event table
that 'wavecut run' reads.

Examples:
  wavecut filter
  wavecut filter --input catalog_2024.txt --output alor_2024.csv`,
	RunE: runFilter,
}

func init() {
	filterCmd.Flags().StringVarP(&filterInput, "input", "i", "", "catalog listing (overrides catalog.input)")
	filterCmd.Flags().StringVarP(&filterOutput, "output", "o", "", "filtered table (overrides catalog.filtered)")
	rootCmd.AddCommand(filterCmd)
}

func runFilter(cmd *cobra.Command, _ []string) error {
	input := cfg.Catalog.Input
	if filterInput != "" {
		input = filterInput
	}
	output := cfg.Catalog.Filtered
	if filterOutput != "" {
		output = filterOutput
	}

	f, err := os.Open(input) //nolint:gosec // G304: path comes from config or flag
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	events, err := catalog.ParseText(f)
	if err != nil {
		return fmt.Errorf("parsing catalog: %w", err)
	}
	kept := catalog.Filter(events, cfg.Catalog.Bounds)

	if err := catalog.WriteCSVFile(output, kept); err != nil {
		return err
	}
	log.Info(log.CatCatalog, "Catalog filtered", "input", input, "parsed", len(events), "kept", len(kept), "output", output)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Kept %d of %d events, saved to %s\n", len(kept), len(events), output)
	return nil
}
