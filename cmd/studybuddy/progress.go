package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hyperjump/studybuddy/internal/cli"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show learning progress and weak areas",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		summary, err := s.Progress(cmd.Context())
		if err != nil {
			return err
		}
		return cli.WriteProgress(cmd.OutOrStdout(), summary, format)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List generated quizzes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		entries, err := s.QuizHistory(cmd.Context())
		if err != nil {
			return err
		}
		return cli.WriteHistory(cmd.OutOrStdout(), entries, format)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export quiz history and progress to an xlsx workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		path, _ := cmd.Flags().GetString("output")
		if filepath.Ext(path) == "" {
			path += ".xlsx"
		}
		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer func() {
			if cerr := f.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("close %s: %w", path, cerr)
			}
			if err != nil {
				_ = os.Remove(path)
			}
		}()
		if err := s.ExportProgress(cmd.Context(), f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Progress exported to %s\n", path)
		return nil
	},
}

func init() {
	addOutputFlag(progressCmd)
	addOutputFlag(historyCmd)
	exportCmd.Flags().StringP("output", "o", "studybuddy-progress.xlsx", "workbook path")
}
