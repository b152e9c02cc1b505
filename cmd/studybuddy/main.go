// Package main is the StudyBuddy CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/app"
	"github.com/hyperjump/studybuddy/internal/cli"
	"github.com/hyperjump/studybuddy/internal/config"
	"github.com/hyperjump/studybuddy/pkg/utils"
)

// version is set via -ldflags at build time.
var version = "dev"

const defaultConfigPath = "/usr/local/etc/studybuddy/config.yaml"

var rootCmd = &cobra.Command{
	Use:           "studybuddy",
	Short:         "AI study assistant for your own notes",
	Long:          "StudyBuddy indexes study material, answers questions from it, generates quizzes and tracks progress.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(quizCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins when present, and built-in defaults are used when neither exists.
// Returns the config and the path that was loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			local := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(local); err == nil {
				cfg, err := config.Load(local)
				if err != nil {
					return nil, "", err
				}
				return cfg, local, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// session is an opened App with its logger.
type session struct {
	*app.App
	cfg    *config.Config
	logger *zap.Logger
}

func (s *session) Close() {
	if err := s.App.Close(); err != nil {
		s.logger.Warn("close failed", zap.Error(err))
	}
	_ = s.logger.Sync()
}

// openSession loads the config and opens the App. Long-running commands log at
// info level; one-shot commands only log with --debug.
func openSession(cmd *cobra.Command, longRunning bool) (*session, error) {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, loaded, err := loadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug = debug || cfg.Debug

	logger := zap.NewNop()
	if longRunning || debug {
		logger, err = utils.NewLogger(debug)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}
	logger.Debug("config loaded", zap.String("config_path", loaded), zap.Bool("debug", debug))

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &session{App: a, cfg: cfg, logger: logger}, nil
}

// outputFormat reads the --output flag.
func outputFormat(cmd *cobra.Command) (cli.OutputFormat, error) {
	s, _ := cmd.Flags().GetString("output")
	return cli.ParseOutputFormat(s)
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "text", "output format: text or json")
}
