package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/wavecut/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the wavecut config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the commented default config",
	Long: `Write the default config, with comments describing every option, to the
--config path or .wavecut/config.yaml.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{"config": "skip"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := config.DefaultPath
		if cfgFile != "" {
			path = cfgFile
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefaultConfig(path); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if used := viper.ConfigFileUsed(); used != "" {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", used)
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(viper.AllSettings()); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		return enc.Close()
	},
}

var configStationsCmd = &cobra.Command{
	Use:   "stations [CODE...]",
	Short: "Set the station allow-list",
	Long: `Replace the station allow-list in the config file. With no codes the list is
cleared and every station is kept.

Examples:
  wavecut config stations PAFM ALRB
  wavecut config stations`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if err := config.SaveStations(path, args); err != nil {
			return err
		}
		if len(args) == 0 {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cleared station allow-list in %s\n", path)
			return nil
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved %d station(s) to %s\n", len(args), path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd, configStationsCmd)
	rootCmd.AddCommand(configCmd)
}
