// Package main implements the docchatd daemon: a document chat server that
// ingests uploaded files into a vector index and answers questions about
// them over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath is the --config flag value.
	configPath string

	// Version information (set via ldflags during build)
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docchatd",
	Short: "Document chat daemon",
	Long: `docchatd serves a chat API grounded in the user's own documents.
Uploaded files (pdf, docx, pptx, xlsx, csv, html, images, plain text) are
extracted, chunked, embedded and indexed; chat turns retrieve the most
relevant chunks and hand them to the model as context.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default ~/.config/docchat/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("docchatd %s (%s)\n", version, gitCommit)
	},
}
