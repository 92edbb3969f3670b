package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/projectrag-mcp/internal/rag"
)

var (
	initForce     bool
	initEphemeral bool
)

var initCmd = &cobra.Command{
	Use:   "init <project-id> <project.json>",
	Short: "Build or refresh the index for a project",
	Long: `Chunk, embed and persist the project data in the given JSON file.
An unchanged project reuses its snapshot; use --force to re-embed anyway.`,
	Args: cobra.ExactArgs(2),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "rebuild even when the data is unchanged")
	initCmd.Flags().BoolVar(&initEphemeral, "ephemeral", false, "do not write a snapshot")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	projectID, path := args[0], args[1]
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read project data: %w", err)
	}

	svc, err := rag.Open(cmd.Context(), cfg, rag.SetupOptions{Ephemeral: initEphemeral})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	res, err := svc.InitializeJSON(cmd.Context(), projectID, raw, initForce)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Project:     %s\n", res.ProjectID)
	fmt.Fprintf(out, "Outcome:     %s\n", res.Outcome)
	fmt.Fprintf(out, "Chunks:      %d\n", res.Chunks)
	fmt.Fprintf(out, "Persisted:   %t\n", res.Persisted)
	fmt.Fprintf(out, "Fingerprint: %s\n", res.Fingerprint)
	fmt.Fprintf(out, "Duration:    %v\n", res.Duration.Round(time.Millisecond))
	return nil
}
