package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"xhsmonitor/pkg/account"
	"xhsmonitor/pkg/browser"
	"xhsmonitor/pkg/config"
	"xhsmonitor/pkg/logger"
	"xhsmonitor/pkg/monitor"
	"xhsmonitor/pkg/storage"
	"xhsmonitor/pkg/ui"
)

var (
	// Run command flags
	runKeywords   []string
	runWindow     string
	runWindowDays int
	runMaxPosts   int
	runComments   bool
	runHeadless   bool
	runOutputDir  string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a monitoring run over the configured keywords",
	Long: `Start a monitoring run. For each keyword the monitor picks the
healthiest eligible account, opens a browser session under a fresh
fingerprint, searches the keyword and collects posts (and optionally
comments) inside the configured time window.

The vault must be initialized and at least one account added first.
Results are written to the results directory as a timestamped JSON
file; Ctrl+C stops the run and still flushes partial results.`,
	Example: `  # Run with keywords from the config file
  xhsmonitor run

  # Override keywords and window on the command line
  xhsmonitor run --keywords 咖啡,奶茶 --window 3_days

  # Watch the browser while debugging selectors
  xhsmonitor run --headless=false`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVarP(&runKeywords, "keywords", "k", nil, "keywords to monitor (comma separated)")
	runCmd.Flags().StringVarP(&runWindow, "window", "w", "", "time window preset (1_day, 3_days, 1_week, 2_weeks, 1_month, custom)")
	runCmd.Flags().IntVar(&runWindowDays, "window-days", 0, "window size in days when --window=custom")
	runCmd.Flags().IntVar(&runMaxPosts, "max-posts", 0, "maximum posts to collect per keyword")
	runCmd.Flags().BoolVar(&runComments, "comments", false, "also collect comments from each post")
	runCmd.Flags().BoolVar(&runHeadless, "headless", true, "run the browser headless")
	runCmd.Flags().StringVarP(&runOutputDir, "output", "o", "", "results directory")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{
		"log-level": logLevel,
	}
	if len(runKeywords) > 0 {
		flags["keywords"] = runKeywords
	}
	if runWindow != "" {
		flags["window"] = runWindow
	}
	if runWindowDays > 0 {
		flags["window-days"] = runWindowDays
	}
	if runMaxPosts > 0 {
		flags["max-posts"] = runMaxPosts
	}
	if runOutputDir != "" {
		flags["output"] = runOutputDir
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"] = runHeadless
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}
	if cmd.Flags().Changed("comments") {
		cfg.Monitor.ExtractComments = runComments
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	v, err := unlockVault(cfg)
	if err != nil {
		ui.PrintError("Vault unlock failed", err.Error())
		return err
	}
	defer v.Lock()

	registry, err := account.NewRegistry(cfg.Accounts.StoreFile, cfg.Accounts.SessionDir, v)
	if err != nil {
		ui.PrintError("Failed to open account store", err.Error())
		return err
	}
	if len(registry.List()) == 0 {
		ui.PrintError("No accounts configured", "add one with 'xhsmonitor accounts add' first")
		return fmt.Errorf("account store is empty")
	}

	store, err := storage.NewManager(cfg.Output.ResultsDir, cfg.Output.ExportCSV)
	if err != nil {
		ui.PrintError("Failed to prepare results directory", err.Error())
		return err
	}

	orchestrator := monitor.New(cfg, registry, browser.NewChromeOpener(cfg.Browser), store)

	handle, err := orchestrator.Start()
	if err != nil {
		ui.PrintError("Failed to start run", err.Error())
		return err
	}

	// Ctrl+C stops cooperatively; partial results are still flushed
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		ui.PrintWarning("Stop requested, finishing up")
		handle.Cancel()
	}()

	ui.PrintHighlight("[MONITORING RUN STARTED]")
	ui.RenderEvents(handle.Events())

	result, runErr := handle.Wait()
	if result != nil {
		ui.PrintInfo("Status", result.Status)
		ui.PrintInfo("Keywords processed", fmt.Sprintf("%d", result.Stats.KeywordsProcessed))
		ui.PrintInfo("Posts collected", fmt.Sprintf("%d", result.Stats.TotalPosts))
		if result.Stats.TotalComments > 0 {
			ui.PrintInfo("Comments collected", fmt.Sprintf("%d", result.Stats.TotalComments))
		}
	}
	if runErr != nil {
		ui.PrintError("RUN FAILED", runErr.Error())
		return runErr
	}

	ui.PrintSuccess("[RUN FINISHED]")
	return nil
}
