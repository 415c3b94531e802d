package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/wavecut/internal/mseed"
	"github.com/zjrosen/wavecut/internal/presentation"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE...",
	Short: "List the traces of waveform files",
	Long: `Read miniSEED files and list every trace they hold with its time span, sample
rate and encoding. Unreadable files are reported, not fatal.

Examples:
  wavecut inspect events/2024/20240310_081500_Mag5.2_Depth33_Near_Alor.mseed
  wavecut inspect staging/* --json | jq '.[].traces[].id'`,
	Args:        cobra.MinimumNArgs(1),
	Annotations: map[string]string{"config": "skip"},
	RunE: func(cmd *cobra.Command, args []string) error {
		files := make([]presentation.FileDTO, 0, len(args))
		for _, path := range args {
			traces, err := mseed.ReadFile(path)
			files = append(files, presentation.FromTraces(path, traces, err))
		}
		return presentation.NewFormatter(cmd.OutOrStdout(), inspectJSON).FormatFiles(files)
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print JSON")
	rootCmd.AddCommand(inspectCmd)
}
