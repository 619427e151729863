package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/liuscraft/orion-therapy/internal/config"
	"github.com/liuscraft/orion-therapy/internal/logging"
)

// app carries what the root command loads for its subcommands.
type app struct {
	configPath string
	envFile    string
	cfg        *config.AppConfig
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "therapybot",
		Short:         "Voice-driven physical therapy session assistant",
		Long:          `therapybot guides a patient through calibration and a series of exercises, driven by recognized voice intents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath, "config file (.json, .yaml or .yml)")
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newConsoleCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (a *app) load() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateKeys(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	a.cfg = cfg
	return nil
}
