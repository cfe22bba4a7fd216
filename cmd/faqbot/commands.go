package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/faqbot/internal/backfill"
	"github.com/kalambet/faqbot/internal/config"
	"github.com/kalambet/faqbot/internal/huggingface"
	"github.com/kalambet/faqbot/internal/storage"
)

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Classify a message and print the bot's response",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/chat", map[string]string{"message": message})
		if err != nil {
			return err
		}

		var result struct {
			Response   string  `json:"response"`
			Intent     string  `json:"intent"`
			Confidence float64 `json:"confidence"`
			Method     string  `json:"method"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Response)
		if result.Intent != "" {
			fmt.Fprintf(os.Stderr, "  %s %s (%.3f, %s)\n",
				colorize(colorBold, "intent:"), result.Intent, result.Confidence, result.Method)
		}
		return nil
	},
}

// --- intents ---

var intentsCmd = &cobra.Command{
	Use:   "intents",
	Short: "Manage FAQ intents",
}

var intentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all intents",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/admin/intents")
		if err != nil {
			return err
		}

		var intents []struct {
			Tag         string `json:"Tag"`
			Description string `json:"Description"`
		}
		if err := decodeJSON(resp, &intents); err != nil {
			return err
		}

		if len(intents) == 0 {
			fmt.Println("No intents configured.")
			return nil
		}
		for _, in := range intents {
			fmt.Printf("%s  %s\n", colorize(colorCyan, in.Tag), in.Description)
		}
		return nil
	},
}

var intentsAddCmd = &cobra.Command{
	Use:   "add <tag>",
	Short: "Create a new intent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/admin/intents", map[string]string{
			"tag":         args[0],
			"description": description,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Created intent %s", args[0])
		return nil
	},
}

var intentsDeleteCmd = &cobra.Command{
	Use:   "delete <tag>",
	Short: "Delete an intent and all its patterns, responses and embeddings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/admin/intents/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted intent %s", args[0])
		return nil
	},
}

func init() {
	intentsAddCmd.Flags().String("description", "", "description of the intent")
	intentsCmd.AddCommand(intentsListCmd)
	intentsCmd.AddCommand(intentsAddCmd)
	intentsCmd.AddCommand(intentsDeleteCmd)
}

// --- patterns ---

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Manage example utterances",
}

var patternsListCmd = &cobra.Command{
	Use:   "list <intent>",
	Short: "List patterns for an intent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/admin/intents/"+args[0]+"/patterns")
		if err != nil {
			return err
		}

		var patterns []struct {
			ID   string `json:"ID"`
			Text string `json:"Text"`
		}
		if err := decodeJSON(resp, &patterns); err != nil {
			return err
		}

		if len(patterns) == 0 {
			fmt.Println("No patterns found.")
			return nil
		}
		for _, p := range patterns {
			fmt.Printf("%s  %s\n", colorize(colorCyan, p.ID[:8]), p.Text)
		}
		return nil
	},
}

var patternsAddCmd = &cobra.Command{
	Use:   "add <intent> <text>",
	Short: "Add an example utterance to an intent",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tag := args[0]
		text := strings.Join(args[1:], " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/admin/intents/"+tag+"/patterns", map[string]string{"text": text})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Added pattern %s (%s)", result["id"], result["status"])
		return nil
	},
}

var patternsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/admin/patterns/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted pattern %s", args[0])
		return nil
	},
}

func init() {
	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsAddCmd)
	patternsCmd.AddCommand(patternsDeleteCmd)
}

// --- responses ---

var responsesCmd = &cobra.Command{
	Use:   "responses",
	Short: "Manage canned responses",
}

var responsesListCmd = &cobra.Command{
	Use:   "list <intent>",
	Short: "List responses for an intent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/admin/intents/"+args[0]+"/responses")
		if err != nil {
			return err
		}

		var responses []struct {
			ID   string `json:"ID"`
			Text string `json:"Text"`
		}
		if err := decodeJSON(resp, &responses); err != nil {
			return err
		}

		if len(responses) == 0 {
			fmt.Println("No responses found.")
			return nil
		}
		for _, r := range responses {
			fmt.Printf("%s  %s\n", colorize(colorCyan, r.ID[:8]), r.Text)
		}
		return nil
	},
}

var responsesAddCmd = &cobra.Command{
	Use:   "add <intent> <text>",
	Short: "Add a canned response to an intent",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tag := args[0]
		text := strings.Join(args[1:], " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/admin/intents/"+tag+"/responses", map[string]string{"text": text})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Added response %s", result["id"])
		return nil
	},
}

var responsesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/admin/responses/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted response %s", args[0])
		return nil
	},
}

func init() {
	responsesCmd.AddCommand(responsesListCmd)
	responsesCmd.AddCommand(responsesAddCmd)
	responsesCmd.AddCommand(responsesDeleteCmd)
}

// --- settings ---

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or update runtime settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show a setting value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/admin/settings/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Printf("%s = %s\n", colorize(colorBold, result["key"]), result["value"])
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a setting value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.put(cmd.Context(), "/admin/settings/"+key, map[string]string{"value": value})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

// --- logs ---

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent chat logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/admin/logs?limit=%d", limit))
		if err != nil {
			return err
		}

		var logs []struct {
			Query      string  `json:"Query"`
			IntentTag  string  `json:"IntentTag"`
			Matched    bool    `json:"Matched"`
			Method     string  `json:"Method"`
			Confidence float64 `json:"Confidence"`
		}
		if err := decodeJSON(resp, &logs); err != nil {
			return err
		}

		if len(logs) == 0 {
			fmt.Println("No chat logs found.")
			return nil
		}
		for _, l := range logs {
			query := l.Query
			if len(query) > 60 {
				query = query[:60] + "..."
			}
			marker := colorize(colorRed, "✗")
			if l.Matched {
				marker = colorize(colorGreen, "✓")
			}
			fmt.Printf("%s %-20s %.3f %-8s %s\n", marker, l.IntentTag, l.Confidence, l.Method, query)
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().Int("limit", 20, "maximum number of logs to show")
}

// --- setup ---

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initialize the local database and default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		versions, err := store.AppliedMigrations()
		if err != nil {
			return fmt.Errorf("reading migrations: %w", err)
		}
		for _, v := range versions {
			printStatus("Migration", "%04d applied", v)
		}

		for key, value := range map[string]string{
			"threshold":         fmt.Sprintf("%g", cfg.Matching.SemanticThreshold),
			"lexical_threshold": fmt.Sprintf("%g", cfg.Matching.LexicalThreshold),
		} {
			if _, err := store.GetSetting(key); err == nil {
				continue
			}
			if err := store.SetSetting(key, value); err != nil {
				return fmt.Errorf("writing default setting %s: %w", key, err)
			}
			printStatus("Setting", "%s = %s", key, value)
		}

		printSuccess("faqbot initialized in %s", cfg.Storage.DataDir)
		return nil
	},
}

// --- seed ---

type seedIntent struct {
	Tag         string   `json:"tag"`
	Description string   `json:"description"`
	Patterns    []string `json:"patterns"`
	Responses   []string `json:"responses"`
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load intents, patterns and responses from a JSON file",
	Long: `Load a FAQ corpus from a JSON file.

The file holds an array of intents:
  [{"tag": "hours", "description": "opening hours",
    "patterns": ["what are your opening hours", "when do you open"],
    "responses": ["We are open 9 to 5, Monday to Friday."]}]`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading seed file: %w", err)
		}

		var seeds []seedIntent
		if err := json.Unmarshal(data, &seeds); err != nil {
			return fmt.Errorf("parsing seed file: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		for _, s := range seeds {
			resp, err := client.post(ctx, "/admin/intents", map[string]string{
				"tag":         s.Tag,
				"description": s.Description,
			})
			if err != nil {
				return err
			}
			var created map[string]string
			if err := decodeJSON(resp, &created); err != nil {
				return fmt.Errorf("creating intent %s: %w", s.Tag, err)
			}

			for _, p := range s.Patterns {
				resp, err := client.post(ctx, "/admin/intents/"+s.Tag+"/patterns", map[string]string{"text": p})
				if err != nil {
					return err
				}
				var r map[string]string
				if err := decodeJSON(resp, &r); err != nil {
					return fmt.Errorf("adding pattern to %s: %w", s.Tag, err)
				}
			}
			for _, t := range s.Responses {
				resp, err := client.post(ctx, "/admin/intents/"+s.Tag+"/responses", map[string]string{"text": t})
				if err != nil {
					return err
				}
				var r map[string]string
				if err := decodeJSON(resp, &r); err != nil {
					return fmt.Errorf("adding response to %s: %w", s.Tag, err)
				}
			}
			printSuccess("Seeded intent %s (%d patterns, %d responses)",
				s.Tag, len(s.Patterns), len(s.Responses))
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().String("file", "", "path to the seed JSON file")
}

// --- backfill ---

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Embed patterns that have no cached embedding",
	Long: `Embed patterns that have no cached embedding.

By default this asks the running server to queue background embed jobs.
With --direct the patterns are embedded synchronously against the
HuggingFace API using the local database, without a running server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		direct, _ := cmd.Flags().GetBool("direct")
		if direct {
			return backfillDirect(cmd)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/admin/backfill", nil)
		if err != nil {
			return err
		}

		var result map[string]int
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Queued %d patterns for embedding", result["queued"])
		return nil
	},
}

func backfillDirect(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.HuggingFace.APIToken == "" {
		return fmt.Errorf("no HuggingFace token configured; set FAQBOT_HF_API_TOKEN")
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	hf := huggingface.New(cfg.HuggingFace.BaseURL, cfg.HuggingFace.Model, cfg.HuggingFace.APIToken, cfg.HuggingFace.Timeout)
	embedded, err := backfill.SyncNow(cmd.Context(), store, hf)
	if err != nil {
		return err
	}

	printSuccess("Embedded %d patterns", embedded)
	return nil
}

func init() {
	backfillCmd.Flags().Bool("direct", false, "embed synchronously without a running server")
}
