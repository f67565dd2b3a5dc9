package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mangatl/mangatl/internal/config"
)

// app carries state shared by every subcommand.
type app struct {
	v   *viper.Viper
	cfg config.Config
}

func NewRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	cmd := &cobra.Command{
		Use:   "mangatl",
		Short: "Submit manga pages to a translation backend and collect the results",
		Long: `mangatl manages a batch of manga page images for a translation backend.

Images are collected locally, uploaded in a single request with the chosen
translation engine, and the translated pages can be downloaded as one zip.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			a.cfg = cfg
			setupLogging(cfg.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().String("endpoint", "", "Translation endpoint URL")
	cmd.PersistentFlags().String("engine", "", "Translation engine (gemini, deepseek, google)")
	cmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("theme-file", "", "Path of the persisted theme preference")
	bindFlag(a.v, cmd, "endpoint", "endpoint")
	bindFlag(a.v, cmd, "engine", "engine")
	bindFlag(a.v, cmd, "log_level", "log-level")
	bindFlag(a.v, cmd, "theme_file", "theme-file")

	// Add subcommands
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newTranslateCmd(a))
	cmd.AddCommand(newThemeCmd(a))

	return cmd
}

// bindFlag lets a flag override config only when it is actually set.
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
