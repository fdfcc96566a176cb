// inboxmind is an autonomous email operations agent. It observes an
// inbox, consults a decision procedure, and executes only the actions a
// fixed safety policy allows, remembering everything it did.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"inboxmind/internal/agent"
	"inboxmind/internal/alerts"
	"inboxmind/internal/capability"
	"inboxmind/internal/config"
	"inboxmind/internal/crm"
	"inboxmind/internal/gcal"
	"inboxmind/internal/gmail"
	"inboxmind/internal/memory"
	"inboxmind/internal/report"
	"inboxmind/internal/safety"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// run flags
	runOnce  bool
	interval time.Duration

	// report flags
	reportDate string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "inboxmind",
	Short: "inboxmind - autonomous inbox agent with a hard safety gate",
	Long: `inboxmind operates one email inbox autonomously.

Each cycle it observes unread mail and due follow-ups, asks a decision
procedure what to do, and passes every proposed action through a fixed
set of safety rules before anything executes. Everything attempted,
allowed or denied, lands in a durable audit log.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent loop (or a single cycle with --once)",
	RunE:  runAgent,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the daily activity summary",
	RunE:  runReport,
}

var followupsCmd = &cobra.Command{
	Use:   "followups",
	Short: "List pending follow-ups",
	RunE:  runFollowups,
}

var resetFollowupCmd = &cobra.Command{
	Use:   "reset-followup <id> <status>",
	Short: "Transition a pending follow-up to completed, cancelled, or failed",
	Args:  cobra.ExactArgs(2),
	RunE:  runResetFollowup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "inboxmind.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	runCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single cycle and exit")
	runCmd.Flags().DurationVar(&interval, "interval", 0, "Override the configured cycle interval")

	reportCmd.Flags().StringVar(&reportDate, "date", "", "UTC day to summarize (YYYY-MM-DD, default today)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(followupsCmd)
	rootCmd.AddCommand(resetFollowupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runAgent wires the full stack and drives the scheduler. Any failure
// before the first cycle is fatal; after that the loop absorbs errors.
func runAgent(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := memory.NewLongTerm(cfg.Memory.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("failed to open memory store: %w", err)
	}
	defer store.Close()

	bundle, err := buildBundle(ctx, cfg, store)
	if err != nil {
		return err
	}

	decider, err := agent.NewGeminiDecider(ctx, agent.GeminiConfig{
		APIKey: cfg.LLM.APIKey,
		Model:  cfg.LLM.Model,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize decision procedure: %w", err)
	}

	watcher, err := config.NewWatcher(configPath, cfg.Operator.Objectives, logger)
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher unavailable, objectives frozen", zap.Error(err))
	} else {
		defer watcher.Stop()
	}

	gate := safety.NewGate(safety.Limits{
		DailyActionLimit: cfg.Safety.DailyActionLimit,
		MaxRecipients:    cfg.Safety.MaxRecipients,
	})

	cycle := agent.NewCycle(gate, bundle, decider,
		memory.NewShortTerm(logger), store,
		watcher.Objectives,
		agent.CycleConfig{FetchLimit: cfg.Scheduler.FetchLimit},
		logger)

	schedInterval := cfg.GetInterval()
	if interval > 0 {
		schedInterval = interval
	}
	sched := agent.NewScheduler(cycle, agent.SchedulerConfig{
		Interval: schedInterval,
		RunOnce:  runOnce,
	}, logger)

	logger.Info("agent starting",
		zap.String("operator", cfg.Operator.Name),
		zap.Bool("once", runOnce),
		zap.Duration("interval", schedInterval))
	return sched.Run(ctx)
}

// buildBundle assembles the capability set. Mail is mandatory; calendar,
// CRM, and alerts degrade gracefully when unconfigured.
func buildBundle(ctx context.Context, cfg *config.Config, store *memory.LongTerm) (capability.Bundle, error) {
	httpClient, err := gmail.NewAuthorizedClient(ctx, cfg.Google.CredentialsPath, cfg.Google.TokenPath)
	if err != nil {
		return capability.Bundle{}, fmt.Errorf("google auth failed: %w", err)
	}

	mail, err := gmail.NewClient(ctx, httpClient, logger)
	if err != nil {
		return capability.Bundle{}, err
	}

	bundle := capability.Bundle{
		Mail: mail,
		CRM:  crm.NewLocal(store, logger),
	}

	calendar, err := gcal.NewClient(ctx, httpClient, cfg.Google.CalendarID, logger)
	if err != nil {
		logger.Warn("calendar unavailable", zap.Error(err))
	} else {
		bundle.Calendar = calendar
	}

	if cfg.Alerts.SlackWebhookURL != "" {
		slack, err := alerts.NewSlack(cfg.Alerts.SlackWebhookURL, cfg.Alerts.Channel, logger)
		if err != nil {
			return capability.Bundle{}, err
		}
		bundle.Alerts = slack
	} else {
		bundle.Alerts = alerts.NewNop(logger)
	}
	return bundle, nil
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	store, err := memory.NewLongTerm(cfg.Memory.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("failed to open memory store: %w", err)
	}
	defer store.Close()

	day := time.Now().UTC()
	if reportDate != "" {
		day, err = time.Parse("2006-01-02", reportDate)
		if err != nil {
			return fmt.Errorf("invalid --date %q (want YYYY-MM-DD): %w", reportDate, err)
		}
	}

	summary, err := report.NewGenerator(store, logger).DailySummary(day)
	if err != nil {
		return err
	}
	fmt.Print(summary.Format())
	return nil
}

func runFollowups(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	store, err := memory.NewLongTerm(cfg.Memory.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("failed to open memory store: %w", err)
	}
	defer store.Close()

	pending, err := store.ListPendingFollowUps()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("No pending follow-ups.")
		return nil
	}
	for _, fu := range pending {
		fmt.Printf("%s  due %s  %s  %s\n",
			fu.ID, fu.DueTime.Format(time.RFC3339), fu.Sender, fu.Note)
	}
	return nil
}

func runResetFollowup(cmd *cobra.Command, args []string) error {
	id, status := args[0], memory.FollowUpStatus(args[1])
	if !status.Valid() || status == memory.FollowUpPending {
		return fmt.Errorf("invalid target status %q (want completed, cancelled, or failed)", args[1])
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	store, err := memory.NewLongTerm(cfg.Memory.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("failed to open memory store: %w", err)
	}
	defer store.Close()

	if err := store.TransitionFollowUp(id, status); err != nil {
		return fmt.Errorf("failed to transition follow-up %s: %w", id, err)
	}
	fmt.Printf("Follow-up %s marked %s.\n", id, status)
	return nil
}
