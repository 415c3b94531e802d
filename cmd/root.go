package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/wavecut/internal/config"
	"github.com/zjrosen/wavecut/internal/log"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	logLevel  string
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:   "wavecut",
	Short: "Cut earthquake event waveforms out of continuous station archives",
	Long: `wavecut filters an earthquake catalog to a region of interest and, for every
remaining event, downloads the day's station archives, trims each trace to a
window around the origin time and writes one miniSEED file per event.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./.wavecut/config.yaml or ~/.config/wavecut/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"write diagnostic logs (WAVECUT_LOG, default wavecut-debug.log)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"minimum diagnostic log level: debug, info, warn or error (WAVECUT_LOG_LEVEL)")
}

// cleanupLog closes the debug log, if one was opened.
var cleanupLog = func() {}

func setup(cmd *cobra.Command, _ []string) error {
	if err := initLogging(); err != nil {
		return err
	}
	if skipsConfig(cmd) {
		return nil
	}
	return initConfig(cmd)
}

// skipsConfig reports commands that must work without a valid config.
func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["config"] == "skip" {
			return true
		}
	}
	return false
}

func initLogging() error {
	if os.Getenv("WAVECUT_DEBUG") == "" && !debugFlag {
		return nil
	}
	logPath := os.Getenv("WAVECUT_LOG")
	if logPath == "" {
		logPath = "wavecut-debug.log"
	}
	cleanup, err := log.Init(logPath)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	cleanupLog = cleanup
	if logLevel == "" {
		logLevel = os.Getenv("WAVECUT_LOG_LEVEL")
	}
	if logLevel != "" {
		log.SetMinLevel(log.ParseLevel(logLevel))
	}
	log.Info(log.CatConfig, "wavecut starting", "version", version, "logPath", logPath)
	return nil
}

func initConfig(cmd *cobra.Command) error {
	v := viper.GetViper()
	config.SetDefaults(v)
	v.SetEnvPrefix("WAVECUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .wavecut/config.yaml (current directory)
		// 2. ~/.config/wavecut/config.yaml (user config)
		if _, err := os.Stat(config.DefaultPath); err == nil {
			v.SetConfigFile(config.DefaultPath)
		} else {
			home, _ := os.UserHomeDir()
			v.AddConfigPath(filepath.Join(home, ".config", "wavecut"))
			v.SetConfigName("config")
			v.SetConfigType("yaml")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
		// No config file found anywhere - create default at .wavecut/config.yaml
		if writeErr := config.WriteDefaultConfig(config.DefaultPath); writeErr == nil {
			v.SetConfigFile(config.DefaultPath)
			_ = v.ReadInConfig()
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Created default config at %s\n", config.DefaultPath)
		}
		// If write fails, just continue with defaults (no config file)
	}

	loaded, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = loaded
	log.Debug(log.CatConfig, "Config loaded", "file", v.ConfigFileUsed(), "output_dir", cfg.OutputDir, "staging_dir", cfg.StagingDir)
	return nil
}

// configPath is the file settings are saved to.
func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath
}

// Execute runs the root command
func Execute() error {
	defer func() { cleanupLog() }()
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
