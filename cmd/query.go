package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagalabs/saga/internal/llm"
	"github.com/sagalabs/saga/internal/prompts"
	"github.com/sagalabs/saga/internal/retriever"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Search the knowledge bases from the command line",
	Long: `Runs hybrid retrieval over one or more knowledge bases and prints the
matching passages. With --answer the retrieved passages are fed to the
chat model and a grounded answer is printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringSlice("kb", nil, "knowledge base names or ids to search (default all)")
	queryCmd.Flags().Bool("answer", false, "generate an answer instead of listing passages")
	queryCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	question := args[0]

	kbNames, _ := cmd.Flags().GetStringSlice("kb")
	answer, _ := cmd.Flags().GetBool("answer")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	kbIDs, err := resolveKBIDs(ctx, app, kbNames)
	if err != nil {
		return err
	}
	if len(kbIDs) == 0 {
		fmt.Println("No knowledge bases yet. Run `saga ingest` first.")
		return nil
	}

	results, err := app.retriever.Search(ctx, question, kbIDs)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	if answer {
		return printAnswer(ctx, app, question, results)
	}
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	printResults(results)
	return nil
}

// resolveKBIDs maps names or ids to knowledge base ids. An empty list
// selects every knowledge base.
func resolveKBIDs(ctx context.Context, app *app, names []string) ([]string, error) {
	kbs, err := app.knowledge.ListKBs(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		ids := make([]string, 0, len(kbs))
		for _, kb := range kbs {
			ids = append(ids, kb.ID)
		}
		return ids, nil
	}

	var ids []string
	for _, name := range names {
		found := false
		for i := range kbs {
			if kbs[i].ID == name || strings.EqualFold(kbs[i].Name, name) {
				ids = append(ids, kbs[i].ID)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("knowledge base %q not found", name)
		}
	}
	return ids, nil
}

func printAnswer(ctx context.Context, app *app, question string, results []retriever.Result) error {
	snippets := make([]prompts.Snippet, len(results))
	for i, r := range results {
		snippets[i] = r.Snippet(i + 1)
	}

	role, err := app.prompts.Active(prompts.TypeSystem)
	if err != nil {
		return err
	}
	background, err := app.prompts.BackgroundKnowledge()
	if err != nil {
		return err
	}

	resp, err := app.gateway.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: prompts.BuildAnswerSystem(role.Render(), snippets, background)},
			{Role: llm.RoleUser, Content: question},
		},
	})
	if err != nil {
		return fmt.Errorf("completion failed: %w", err)
	}

	fmt.Println(strings.TrimSpace(llm.StripThinking(resp.Content)))
	fmt.Println("\nSources:")
	for i, r := range results {
		fmt.Printf("  [source-%d] %s\n", i+1, r.Source)
	}
	return nil
}

func printResults(results []retriever.Result) {
	fmt.Printf("Found %d passages:\n\n", len(results))
	for i, r := range results {
		fmt.Printf("  %d. [%.3f] %s\n", i+1, r.Score, r.Source)
		fmt.Printf("     %s\n\n", truncate(r.Content, 200))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
