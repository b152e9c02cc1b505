package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/cli"
	"github.com/hyperjump/studybuddy/internal/models"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file-or-dir>...",
	Short: "Index study material (pdf, docx, txt)",
	Long: `Index files into the study library. Directories are walked for supported files.
Re-ingesting a path replaces its previous chunks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")
		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range args {
			info, err := os.Stat(path)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Skipping %s: %v\n", path, err)
				failed++
				continue
			}
			if info.IsDir() {
				n, err := s.IngestDirectory(cmd.Context(), path, recursive)
				fmt.Fprintf(out, "Indexed %d file(s) from %s\n", n, path)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Indexing %s stopped: %v\n", path, err)
					failed++
				}
				continue
			}
			n, err := s.IngestFile(cmd.Context(), path)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to index %s: %v\n", path, err)
				failed++
				continue
			}
			fmt.Fprintf(out, "Indexed %s (%d chunks)\n", path, n)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d path(s) failed", failed, len(args))
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Search indexed material",
	Long:  "Search indexed chunks. The query is all arguments joined by spaces.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}
		mode, _ := cmd.Flags().GetString("mode")
		limit, _ := cmd.Flags().GetInt("limit")
		query := &models.SearchQuery{Query: joinArgs(args), Limit: limit, Mode: models.SearchMode(mode)}
		if err := query.Validate(); err != nil {
			return err
		}

		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		response, err := s.Search(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		return cli.WriteSearchResults(cmd.OutOrStdout(), response, format)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every indexed document",
	Long:  "Remove every indexed chunk and kept upload. Quizzes and progress are kept.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Remove all indexed documents?") {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.ClearDocuments(cmd.Context()); err != nil {
			return fmt.Errorf("clear failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "All documents cleared.")
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]...",
	Short: "Keep directories indexed as files change",
	Long:  "Index the given directories (or the configured watch directories) and follow file changes until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		w := s.NewWatcher(args...)
		if len(w.Directories()) == 0 {
			return fmt.Errorf("no directories to watch: pass them as arguments or set watch.directories in the config")
		}
		ctx := cmd.Context()
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()

		n := w.SyncExisting(ctx)
		s.logger.Info("watching", zap.Strings("directories", w.Directories()), zap.Int("files", n))
		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (%d file(s) indexed). Press Ctrl+C to stop.\n",
			strings.Join(w.Directories(), ", "), n)
		<-ctx.Done()
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolP("recursive", "r", true, "walk directories recursively")

	searchCmd.Flags().String("mode", string(models.SearchHybrid), "search mode: semantic, keyword or hybrid")
	searchCmd.Flags().IntP("limit", "n", 10, "maximum number of results")
	addOutputFlag(searchCmd)

	clearCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

// joinArgs joins args into one query, dropping blank arguments.
func joinArgs(args []string) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " ")
}

// confirm asks a yes/no question and reports whether the answer was yes.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
