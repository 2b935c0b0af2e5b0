package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smallnest/campusrag/rag"
	"github.com/spf13/cobra"
)

var (
	askTopK    int
	askModel   string
	askSummary string
	askUser    string
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "retrieval depth, 0 uses the configured default")
	askCmd.Flags().StringVar(&askModel, "model", "", "answer model, overrides llm.model")
	askCmd.Flags().StringVar(&askSummary, "summary", "", "conversation summary to answer with")
	askCmd.Flags().StringVar(&askUser, "uid", "", "user id for partitioned collections")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	comps, err := newComponents(cfg, logger)
	if err != nil {
		return err
	}

	topK := askTopK
	if topK == 0 {
		topK = cfg.LLM.TopK
	}
	res, err := comps.engine.Answer(cmd.Context(), rag.Query{
		Question: strings.Join(args, " "),
		TopK:     topK,
		Model:    askModel,
		Summary:  askSummary,
		UserID:   askUser,
	})
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}

	if askJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	cmd.Print(renderAnswer(res))
	return nil
}
