package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/projectrag-mcp/internal/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFile string
	envFile    string
	debug      bool

	// cfg is loaded once per invocation by the root command.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "projectrag",
	Short: "Answer questions about project specifications",
	Long: `projectrag indexes project specification JSON (modules, user stories,
features, business rules, tech stack and UI/UX guidelines) and answers
natural-language questions about it with retrieval-augmented generation.

Run "projectrag serve" to expose initialize_project, ask_project and
project_status as MCP tools over stdio.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file (default ~/.config/projectrag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose logging to stderr")
}

func loadConfig(*cobra.Command, []string) error {
	c, err := config.Load(config.Options{ConfigFile: configFile, EnvFile: envFile})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if debug {
		c.Debug = true
	}
	cfg = c
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		os.Exit(1)
	}
}
