package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagalabs/saga/internal/knowledge"
	"github.com/sagalabs/saga/internal/progress"
	"github.com/sagalabs/saga/internal/walker"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [directory]",
	Short: "Index a directory of documents into a knowledge base",
	Long: `Scans a directory for supported documents (.txt, .md, .pdf) and indexes
them into a knowledge base for hybrid search. Already-indexed files are
skipped; use the web UI or API to re-index changed files.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("kb", "", "knowledge base name (required)")
	ingestCmd.Flags().Bool("create", false, "create the knowledge base if it does not exist")
	ingestCmd.Flags().StringSlice("include", nil, "glob patterns to include")
	ingestCmd.Flags().StringSlice("exclude", nil, "glob patterns to exclude")
	ingestCmd.MarkFlagRequired("kb")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	kbName, _ := cmd.Flags().GetString("kb")
	create, _ := cmd.Flags().GetBool("create")
	include, _ := cmd.Flags().GetStringSlice("include")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")

	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	kb, err := findKB(ctx, app, kbName)
	if err != nil {
		if !create {
			return fmt.Errorf("%w\nPass --create to create it", err)
		}
		model, err := app.registry.ActiveEmbeddingModelID()
		if err != nil {
			return err
		}
		kb, err = app.knowledge.CreateKB(ctx, kbName, "", model)
		if err != nil {
			return err
		}
		fmt.Printf("Created knowledge base %q\n", kbName)
	}

	files, err := walker.Walk(walker.WalkerConfig{
		RootDir: args[0],
		Include: include,
		Exclude: exclude,
	})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No supported documents found.")
		return nil
	}

	reporter := progress.NewReporter()
	reporter.Start(len(files))

	var indexed, skipped, failed int
	for i, f := range files {
		reporter.Update(i+1, f.RelPath)

		_, err := app.indexer.AddFile(ctx, kb.ID, f.Path)
		switch {
		case err == nil:
			indexed++
		case errors.Is(err, knowledge.ErrExists):
			skipped++
		default:
			failed++
			if verbose {
				fmt.Printf("\n%s: %v\n", f.RelPath, err)
			}
		}
	}
	reporter.Finish()

	fmt.Printf("Indexed %d, skipped %d already indexed, %d failed\n", indexed, skipped, failed)
	if failed > 0 && !verbose {
		fmt.Println("Re-run with --verbose to see per-file errors.")
	}
	return nil
}

// findKB resolves a knowledge base by name or id.
func findKB(ctx context.Context, app *app, name string) (*knowledge.KnowledgeBase, error) {
	kbs, err := app.knowledge.ListKBs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range kbs {
		if kbs[i].ID == name || strings.EqualFold(kbs[i].Name, name) {
			return &kbs[i], nil
		}
	}
	return nil, fmt.Errorf("knowledge base %q not found", name)
}
