package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/chartmotion-backend/internal/modules/animation/dataset"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/mapping"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/scoring"
	"github.com/yungbote/chartmotion-backend/internal/modules/animation/templates"
	"github.com/yungbote/chartmotion-backend/internal/platform/envutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

var (
	profileHint  string
	profileCount bool
)

type profileReport struct {
	Summary    dataset.Summary     `json:"summary"`
	Normalized *dataset.Normalized `json:"normalized"`
	Candidates []scoring.Candidate `json:"candidates"`
	Decision   *mapping.Decision   `json:"decision,omitempty"`
}

var profileCmd = &cobra.Command{
	Use:   "profile <file.csv>",
	Short: "Normalize a dataset, score every template and negotiate a mapping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		raw, err := dataset.Parse(f, dataset.ParseOptions{Name: args[0]})
		if err != nil {
			return err
		}
		n, sum := dataset.Normalize(raw, dataset.Options{})
		if profileCount || envutil.Bool("COUNT_TRANSFORM_ENABLED", false) {
			if counted, applied := dataset.CountTransform(n); applied {
				n = counted
				sum.Transform = dataset.TransformCount
				sum.OutputRows = len(n.Rows)
			}
		}

		reg := templates.NewRegistry(logger.Nop(), envutil.String("TEMPLATE_CATALOG_PATH", ""))
		scoringCfg := scoring.DefaultConfig()
		scoringCfg.MinRecommend = envutil.Float("SCORER_MIN_RECOMMEND", scoringCfg.MinRecommend)
		cands := scoring.Score(n, reg, profileHint, scoringCfg)

		report := profileReport{Summary: sum, Normalized: n, Candidates: cands}
		if best, found := scoring.Recommended(cands); found {
			mappingCfg := mapping.DefaultConfig()
			mappingCfg.AutoConfirm = envutil.Float("MAPPING_AUTO_CONFIRM", mappingCfg.AutoConfirm)
			d := mapping.Negotiate(best, n, mappingCfg)
			report.Decision = &d
		}
		if jsonOut {
			return printJSON(report)
		}
		printProfile(report)
		return nil
	},
}

func init() {
	profileCmd.Flags().StringVar(&profileHint, "hint", "", "chart hint, as the classifier would extract it (e.g. race, line)")
	profileCmd.Flags().BoolVar(&profileCount, "count", false, "derive a count column for all-categorical data")
}

func printProfile(r profileReport) {
	fmt.Printf("%s %s, %d -> %d rows\n", bold("transform:"), r.Summary.Transform, r.Summary.InputRows, r.Summary.OutputRows)
	for _, w := range r.Summary.Warnings {
		fmt.Println(warn("  ! " + w))
	}
	fmt.Println(bold("columns:"))
	for _, p := range r.Normalized.Profiles {
		fmt.Printf("  %-24s %-12s %s\n", p.Name, p.Type, dim(strings.Join(p.Samples, ", ")))
	}
	fmt.Println(bold("templates:"))
	for _, c := range r.Candidates {
		mark := " "
		if c.Recommended {
			mark = ok("*")
		}
		line := fmt.Sprintf("%s %-16s %.2f", mark, c.Template.ID, c.Confidence)
		if !c.Feasible {
			line = dim(line + "  (infeasible)")
		}
		fmt.Println(line)
	}
	if r.Decision == nil {
		fmt.Println(warn("no template recommended"))
		return
	}
	state := warn("needs confirmation")
	if r.Decision.AutoConfirmed {
		state = ok("auto-confirmed")
	}
	fmt.Printf("%s %s (%s)\n", bold("mapping:"), r.Decision.TemplateID, state)
	for key, col := range r.Decision.Mapping.Columns() {
		fmt.Printf("  %-14s %s\n", key, col)
	}
	for _, p := range r.Decision.Prompts {
		if !p.Resolved() {
			fmt.Printf("  %-14s %s\n", p.Key, warn("? "+strings.Join(p.Suggestions, " | ")))
		}
	}
}
