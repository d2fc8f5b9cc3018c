package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sjarmak/acebeads/internal/evaluator"
	"github.com/sjarmak/acebeads/internal/knowledge"
)

var playbookCmd = &cobra.Command{
	Use:   "playbook",
	Short: "Inspect or prune the durable advice playbook",
}

func init() {
	playbookCmd.AddCommand(playbookShowCmd)
	playbookCmd.AddCommand(playbookPruneCmd)
}

var playbookSection string

var playbookShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show playbook bullets and metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openKnowledge(cfg)
		if err != nil {
			return err
		}

		bullets, _, err := store.LoadBullets()
		if err != nil {
			return fmt.Errorf("loading playbook: %w", err)
		}
		if playbookSection != "" {
			bullets = filterSection(bullets, playbookSection)
		}
		metrics := evaluator.Compute(bullets)

		return writeResult(struct {
			Bullets []knowledge.Bullet `json:"bullets"`
			Metrics evaluator.Metrics  `json:"metrics"`
		}{Bullets: bullets, Metrics: metrics}, func() {
			for _, b := range bullets {
				fmt.Printf("[%s] (%s) helpful:%d harmful:%d  %s\n", b.ID, b.Section, b.Helpful, b.Harmful, b.Content)
			}
			fmt.Printf("\n%d bullets, net score %d, avg helpful %.2f\n", metrics.TotalBullets, metrics.NetScore, metrics.AvgHelpful)
		})
	},
}

func init() {
	playbookShowCmd.Flags().StringVar(&playbookSection, "section", "", "Limit output to one section")
}

var playbookPruneThreshold int

var playbookPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove bullets whose net score falls below a threshold",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openKnowledge(cfg)
		if err != nil {
			return err
		}

		bullets, manifest, err := store.LoadBullets()
		if err != nil {
			return fmt.Errorf("loading playbook: %w", err)
		}

		pruned := evaluator.Prune(bullets, playbookPruneThreshold)
		removed := len(bullets) - len(pruned)

		if err := store.WriteBullets(pruned, manifest); err != nil {
			return fmt.Errorf("writing playbook: %w", err)
		}

		return writeResult(struct {
			Removed   int `json:"removed"`
			Remaining int `json:"remaining"`
		}{Removed: removed, Remaining: len(pruned)}, func() {
			fmt.Printf("pruned %d bullet(s), %d remaining\n", removed, len(pruned))
		})
	},
}

func init() {
	playbookPruneCmd.Flags().IntVar(&playbookPruneThreshold, "threshold", -3, "Net score below which a bullet is pruned")
}

func filterSection(bullets []knowledge.Bullet, section string) []knowledge.Bullet {
	var out []knowledge.Bullet
	for _, b := range bullets {
		if b.Section == section {
			out = append(out, b)
		}
	}
	return out
}
