package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	intentclassifier "clinic-dispatcher/internal/dispatch/intent-classifier"
	"clinic-dispatcher/internal/dispatch/router"
	"clinic-dispatcher/internal/models"
)

// classifyCmd runs the fast path and the classifier on one message without
// touching any backing service. Useful for tuning patterns.
var classifyCmd = &cobra.Command{
	Use:   "classify [message]",
	Short: "Show how a message would be classified",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}

		tz, _ := cmd.Flags().GetString("timezone")
		lang, _ := cmd.Flags().GetString("language")
		prior, _ := cmd.Flags().GetString("prior-intent")
		sess := &models.SessionContext{
			SessionID:   "cli",
			Timezone:    tz,
			Language:    lang,
			PriorIntent: models.Capability(prior),
		}

		message := strings.Join(args, " ")
		fast := router.NewFastPath(cfg.Dispatcher.DefaultLanguage).Match(message)
		classifier := intentclassifier.New(intentclassifier.LoadConfig(cfg.Dispatcher))
		budget := cfg.Dispatcher.ClassifierBudget()
		if budget <= 0 {
			budget = 5 * time.Millisecond
		}
		match := classifier.Classify(message, sess, budget)

		out := map[string]interface{}{
			"message": message,
			"match":   match,
		}
		if fast.Intent != "" {
			out["fast_path"] = fast
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().String("timezone", "", "Session timezone used for relative dates")
	classifyCmd.Flags().String("language", "", "Session language used when detection is inconclusive")
	classifyCmd.Flags().String("prior-intent", "", "Capability of the previous turn, e.g. availability")
}
