package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sjarmak/acebeads/internal/config"
	"github.com/sjarmak/acebeads/internal/tracker"
)

var trackerCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Create, list, and update work-items in the external issue tracker",
}

func init() {
	trackerCmd.AddCommand(trackerCreateCmd)
	trackerCmd.AddCommand(trackerListCmd)
	trackerCmd.AddCommand(trackerShowCmd)
	trackerCmd.AddCommand(trackerUpdateCmd)
	trackerCmd.AddCommand(trackerCloseCmd)
	trackerCmd.AddCommand(trackerDepCmd)
	trackerCmd.AddCommand(trackerWatchCmd)
}

// newAdapter builds an exec-based Adapter against cfg's configured
// tracker binary (spec.md Section 4.8).
func newAdapter(cfg *config.Config) tracker.Adapter {
	return tracker.NewExecClient(cfg.TrackerBin)
}

var trackerCreateDescription string

var trackerCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a work-item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		item, err := newAdapter(cfg).Create(context.Background(), args[0], trackerCreateDescription)
		if err != nil {
			return fmt.Errorf("creating item: %w", err)
		}
		return writeResult(item, func() {
			fmt.Printf("created %s: %s\n", item.ID, item.Title)
		})
	},
}

func init() {
	trackerCreateCmd.Flags().StringVar(&trackerCreateDescription, "description", "", "Item description")
}

var trackerListStatus string

var trackerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List work-items",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		items, err := newAdapter(cfg).List(context.Background(), tracker.Filter{Status: tracker.Status(trackerListStatus)})
		if err != nil {
			return fmt.Errorf("listing items: %w", err)
		}
		return writeResult(items, func() {
			for _, it := range items {
				fmt.Printf("%s  [%s]  %s\n", it.ID, it.Status, it.Title)
			}
		})
	},
}

func init() {
	trackerListCmd.Flags().StringVar(&trackerListStatus, "status", "", "Filter by status (open, in_progress, closed)")
}

var trackerShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single work-item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		item, err := newAdapter(cfg).Get(context.Background(), args[0])
		if err != nil {
			return notFoundError(fmt.Errorf("item %s not found: %w", args[0], err))
		}
		return writeResult(item, func() {
			fmt.Printf("%s: %s\nstatus: %s\ndescription: %s\n", item.ID, item.Title, item.Status, item.Description)
		})
	},
}

var trackerUpdateCmd = &cobra.Command{
	Use:   "update <id> <description>",
	Short: "Update a work-item's description",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		item, err := newAdapter(cfg).Update(context.Background(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("updating item %s: %w", args[0], err)
		}
		return writeResult(item, func() {
			fmt.Printf("updated %s\n", item.ID)
		})
	},
}

var trackerCloseCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Close a work-item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		item, err := newAdapter(cfg).Close(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("closing item %s: %w", args[0], err)
		}
		return writeResult(item, func() {
			fmt.Printf("closed %s\n", item.ID)
		})
	},
}

var trackerDepKind string

var trackerDepCmd = &cobra.Command{
	Use:   "dep <from-id> <to-id>",
	Short: "Add a typed dependency between two work-items",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		kind := tracker.DependencyKind(trackerDepKind)
		switch kind {
		case tracker.DepBlocks, tracker.DepRelated, tracker.DepParentChild, tracker.DepDiscoveredFrom:
		default:
			return usageError(fmt.Errorf("unrecognized dependency kind %q", trackerDepKind))
		}

		if err := newAdapter(cfg).AddDependency(context.Background(), tracker.Dependency{
			FromID: args[0], ToID: args[1], Kind: kind,
		}); err != nil {
			return fmt.Errorf("adding dependency: %w", err)
		}

		return writeResult(struct {
			From string `json:"from"`
			To   string `json:"to"`
			Kind string `json:"kind"`
		}{From: args[0], To: args[1], Kind: string(kind)}, func() {
			fmt.Printf("%s --%s--> %s\n", args[0], kind, args[1])
		})
	},
}

func init() {
	trackerDepCmd.Flags().StringVar(&trackerDepKind, "kind", string(tracker.DepRelated), "Dependency kind: blocks, related, parent-child, discovered-from")
}

var trackerWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the tracker's event log and route closure/update events",
	Long: `Tail the tracker's append-only event log, classifying each new line
as created/updated/closed and routing it to the configured review
destination (spec.md Section 4.8). Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		rules := routingFromConfig(cfg.ReviewRouting)
		w, err := tracker.NewWatcher(cfg.TrackerLogPath, rules)
		if err != nil {
			return fmt.Errorf("starting tracker watcher: %w", err)
		}
		defer w.Close()

		w.OnEvent = func(itemID string, kind tracker.EventKind, dest tracker.RoutingDestination) {
			fmt.Printf("%s  %s -> %s\n", itemID, kind, dest)
		}
		w.OnClosure = func(ev tracker.ClosureEvent) {
			fmt.Printf("%s closed (closure event received)\n", ev.ItemID)
		}

		fmt.Printf("watching %s for tracker events (ctrl-c to stop)\n", cfg.TrackerLogPath)
		select {}
	},
}

// routingFromConfig builds the Watcher's ordered routing table from the
// config's event-type -> destination map, falling back to the built-in
// defaults for any event not named in config.
func routingFromConfig(reviewRouting map[string]string) []tracker.RoutingRule {
	defaults := tracker.DefaultRouting()
	if len(reviewRouting) == 0 {
		return defaults
	}

	byKind := map[tracker.EventKind]tracker.RoutingDestination{}
	for _, r := range defaults {
		byKind[r.Kind] = r.Destination
	}
	for name, dest := range reviewRouting {
		kind := tracker.EventKind(name)
		byKind[kind] = tracker.RoutingDestination(dest)
	}

	rules := make([]tracker.RoutingRule, 0, len(byKind))
	for _, r := range defaults {
		rules = append(rules, tracker.RoutingRule{Kind: r.Kind, Destination: byKind[r.Kind]})
	}
	return rules
}
