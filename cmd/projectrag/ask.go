package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/projectrag-mcp/internal/answerer"
	"github.com/dshills/projectrag-mcp/internal/rag"
	"github.com/dshills/projectrag-mcp/pkg/types"
)

var (
	askTopK     int
	askSources  bool
	askMinScore float32
	askTypes    []string
)

var askCmd = &cobra.Command{
	Use:   "ask <project-id> <project.json> <question>",
	Short: "Ask a question about a project",
	Long: `Initialize the project from the JSON file (reusing a stored index when
the data is unchanged) and answer the question with the configured model.`,
	Args: cobra.ExactArgs(3),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	askCmd.Flags().BoolVarP(&askSources, "sources", "s", false, "print the retrieved chunks")
	askCmd.Flags().Float32Var(&askMinScore, "min-score", 0, "drop chunks scoring below this (0 to 1)")
	askCmd.Flags().StringSliceVarP(&askTypes, "types", "t", nil, "only retrieve these chunk types, e.g. module_list,technology")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	projectID, path, question := args[0], args[1], args[2]
	if askMinScore < 0 || askMinScore > 1 {
		return fmt.Errorf("--min-score must be between 0 and 1, got %g", askMinScore)
	}
	chunkTypes := make([]types.ChunkType, 0, len(askTypes))
	for _, name := range askTypes {
		t, err := types.ParseChunkType(name)
		if err != nil {
			return err
		}
		chunkTypes = append(chunkTypes, t)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read project data: %w", err)
	}

	svc, err := rag.Open(cmd.Context(), cfg, rag.SetupOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	if _, err := svc.InitializeJSON(cmd.Context(), projectID, raw, false); err != nil {
		return err
	}

	ans, err := svc.QueryWith(cmd.Context(), projectID, question, rag.QueryOptions{
		TopK:     askTopK,
		MinScore: askMinScore,
		Types:    chunkTypes,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ans.Text)
	if askSources {
		printSources(out, ans)
	}
	return nil
}

func printSources(out io.Writer, ans *answerer.Answer) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, color.New(color.Bold).Sprint("Sources:"))
	for _, r := range ans.Sources {
		fmt.Fprintf(out, "  [%d] %s (%s) score=%.3f\n", r.Rank, r.Chunk.Metadata.Source, r.Chunk.Metadata.Type, r.Score)
	}
}
