package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "faqbot",
	Short: "FAQ chatbot with semantic and keyword intent matching",
	Long: `faqbot answers frequently asked questions by matching user messages
against a corpus of example utterances. Matching is semantic first
(sentence embeddings via the HuggingFace Inference API) with a
bag-of-words keyword fallback, so the bot keeps working when the
embedding provider is unreachable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the faqbot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("faqbot version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(intentsCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(responsesCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(backfillCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
