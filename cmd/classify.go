package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/chartmotion-backend/internal/modules/animation/intent"
	"github.com/yungbote/chartmotion-backend/internal/platform/envutil"
)

var classifyWithDataset bool

var classifyCmd = &cobra.Command{
	Use:   "classify <message>",
	Short: "Classify a chat message as an animation request or not",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := intent.DefaultConfig()
		cfg.WeakThreshold = envutil.Float("INTENT_WEAK_THRESHOLD", cfg.WeakThreshold)
		res := intent.New(cfg).ClassifyWithDataset(strings.Join(args, " "), classifyWithDataset)
		if jsonOut {
			return printJSON(res)
		}
		verdict := warn("not an animation request")
		if res.IsAnimation {
			verdict = ok("animation request")
		}
		fmt.Printf("%s  strength=%.2f", verdict, res.Strength)
		if res.Hint != "" {
			fmt.Printf("  hint=%s", bold(res.Hint))
		}
		fmt.Println()
		for _, r := range res.Reasons {
			fmt.Println(dim("  - " + r))
		}
		return nil
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyWithDataset, "with-dataset", false, "classify as if a dataset were attached")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
