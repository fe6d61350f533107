package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"minerva/backend/go/internal/rag/pipeline"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"
)

var (
	indexPattern    string
	indexCollection string
)

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Index a file or every supported file under a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, logQuiet)
		if err != nil {
			return err
		}
		defer a.close()

		var match glob.Glob
		if indexPattern != "" {
			if match, err = glob.Compile(indexPattern); err != nil {
				return fmt.Errorf("invalid --pattern: %w", err)
			}
		}
		files, err := collectFiles(args[0], match, a.engine.Supports)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no supported files under %s", args[0])
		}

		out := cmd.OutOrStdout()
		var failed int
		for _, f := range files {
			res := a.engine.Index(ctx, f, indexCollection)
			printIndexResult(out, res)
			if !res.Success {
				failed++
			}
		}
		fmt.Fprintf(out, "\n%d indexed, %d failed\n", len(files)-failed, failed)
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(files))
		}
		return nil
	},
}

// collectFiles returns root itself when it is a file, or every file below it
// whose base name matches and whose type is supported.
func collectFiles(root string, match glob.Glob, supported func(string) bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if match != nil && !match.Match(d.Name()) {
			return nil
		}
		if supported(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func printIndexResult(out io.Writer, res pipeline.IndexResult) {
	if res.Success {
		fmt.Fprintf(out, "✓ %s: %d fragmentos (%s) id=%s\n", res.Filename, res.ChunksCreated, res.ProcessingTime.Round(time.Millisecond), res.DocumentID)
		return
	}
	fmt.Fprintf(out, "✗ %s: %s\n", res.Filename, res.Error)
}

func init() {
	indexCmd.Flags().StringVar(&indexPattern, "pattern", "", "glob matched against file names, e.g. '*.{pdf,md}'")
	indexCmd.Flags().StringVar(&indexCollection, "collection", "", "target collection (default from config)")
	rootCmd.AddCommand(indexCmd)
}
