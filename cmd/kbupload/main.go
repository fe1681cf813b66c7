package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	token     string
)

var rootCmd = &cobra.Command{
	Use:   "kbupload",
	Short: "Upload documents to the knowledge base bucket",
	Long: `kbupload asks the chat server for a signed upload URL, streams the file
to the blob store and can then start a knowledge-base ingestion job.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("KBCHAT_SERVER", "http://localhost:8080"), "chat server base URL")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", os.Getenv("KBCHAT_TOKEN"), "bearer token (default $KBCHAT_TOKEN)")

	rootCmd.AddCommand(uploadCmd, ingestCmd)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
