package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/projectrag-mcp/internal/chunker"
	"github.com/dshills/projectrag-mcp/pkg/types"
)

var (
	chunksGranularity string
	chunksSkipRosters bool
	chunksJSON        bool
)

var chunksCmd = &cobra.Command{
	Use:   "chunks <project.json>",
	Short: "Print the chunks built from a project file",
	Long:  `Run the chunker over a project file without embedding anything.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runChunks,
}

func init() {
	chunksCmd.Flags().StringVarP(&chunksGranularity, "granularity", "g", "", "standard or detailed (default from config)")
	chunksCmd.Flags().BoolVar(&chunksSkipRosters, "skip-rosters", false, "omit the module, story and feature roster chunks")
	chunksCmd.Flags().BoolVar(&chunksJSON, "json", false, "output chunks as JSON")
	rootCmd.AddCommand(chunksCmd)
}

func runChunks(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read project data: %w", err)
	}
	data, err := types.DecodeProjectData(raw)
	if err != nil {
		return err
	}

	opts, err := cfg.ChunkerOptions()
	if err != nil {
		return err
	}
	if chunksGranularity != "" {
		if opts.Granularity, err = chunker.ParseGranularity(chunksGranularity); err != nil {
			return err
		}
	}
	if chunksSkipRosters {
		opts.SkipRosters = true
	}

	chunks, err := chunker.New(opts).Build(data)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if chunksJSON {
		encoded, err := json.MarshalIndent(chunks, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal chunks: %w", err)
		}
		fmt.Fprintln(out, string(encoded))
		return nil
	}

	heading := color.New(color.FgCyan, color.Bold)
	for i := range chunks {
		c := &chunks[i]
		fmt.Fprintln(out, heading.Sprintf("[%d] %s (%s, priority %s)", i+1, c.Metadata.Source, c.Metadata.Type, c.Metadata.Priority))
		fmt.Fprintln(out, c.Text)
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "%d chunks\n", len(chunks))
	return nil
}
