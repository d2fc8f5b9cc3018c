package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sjarmak/acebeads/internal/config"
	"github.com/sjarmak/acebeads/internal/curator"
	"github.com/sjarmak/acebeads/internal/cycle"
	"github.com/sjarmak/acebeads/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the web dashboard over the playbook and cycle history",
}

func init() {
	dashboardCmd.AddCommand(dashboardServeCmd)
}

var (
	dashboardAddr       string
	dashboardCycleEvery time.Duration
)

var dashboardServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /dashboard, /dashboard/ws, and the /api/ endpoints",
	Long: `Serve a read-only dashboard over the current playbook, its Evaluator
metrics, and the most recent cycle result, with a live WebSocket feed
of subsequent cycles.

If --cycle-every is nonzero, serve also runs the learning cycle on
that interval in the background and broadcasts each result.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := openKnowledge(cfg)
		if err != nil {
			return err
		}

		d := dashboard.New(dashboard.Options{Knowledge: store})

		mux := http.NewServeMux()
		mux.Handle("/dashboard", d)
		mux.Handle("/dashboard/", d)
		mux.Handle("/dashboard/ws", d.WebSocketHandler())
		mux.Handle("/api/", d.APIHandler())

		if dashboardCycleEvery > 0 {
			go runScheduledCycles(cmd.Context(), cfg, d, dashboardCycleEvery)
		}

		fmt.Printf("dashboard listening on %s\n", dashboardAddr)
		server := &http.Server{Addr: dashboardAddr, Handler: mux}
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("dashboard server: %w", err)
		}
		return nil
	},
}

func init() {
	dashboardServeCmd.Flags().StringVar(&dashboardAddr, "addr", ":8790", "Address to listen on")
	dashboardServeCmd.Flags().DurationVar(&dashboardCycleEvery, "cycle-every", 0, "Run the learning cycle on this interval in the background (0 disables)")
}

// runScheduledCycles runs the full learning cycle on a fixed interval
// and records each result on the dashboard, until ctx is cancelled.
func runScheduledCycles(ctx context.Context, cfg *config.Config, d *dashboard.Dashboard, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := runOneCycle(ctx, cfg)
			if err != nil {
				fmt.Printf("scheduled cycle failed: %v\n", err)
				continue
			}
			d.RecordCycle(result)
		}
	}
}

// runOneCycle runs a single learning cycle using the same wiring as
// `acebeads cycle run`, returning its Result for the dashboard to record.
func runOneCycle(ctx context.Context, cfg *config.Config) (cycle.Result, error) {
	store, err := openKnowledge(cfg)
	if err != nil {
		return cycle.Result{}, err
	}
	traceStore := openTraces(cfg)
	read, err := traceStore.ReadAll()
	if err != nil {
		return cycle.Result{}, fmt.Errorf("reading trace log: %w", err)
	}

	runner := cycle.NewRunner()
	return runner.Run(ctx, cycle.Config{
		Knowledge:           store,
		Queue:               openQueue(cfg),
		Traces:              traceStore,
		ConfidenceFloor:     cfg.Learning.ConfidenceMin,
		MaxDeltasPerSession: cfg.MaxDeltasPerSession,
		PruneThreshold:      -3,
		HarmfulThreshold:    2,
		ArchiveDate:         func() string { return time.Now().UTC().Format("2006-01-02") },
		CuratorOptions: curator.Options{
			ConfidenceThreshold: cfg.Learning.ConfidenceMin,
			MaxDeltasPerSession: cfg.MaxDeltasPerSession,
		},
	}, read.Traces)
}
