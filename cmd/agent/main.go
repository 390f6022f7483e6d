package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/config"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/logging"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/orchestrator"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version   = "0.1.0"
	cfgFile   string
	serverURL string
	jsonOut   bool
)

var rootCmd = &cobra.Command{
	Use:   "remotewatch-agent",
	Short: "RemoteWatch endpoint agent",
	Long:  `RemoteWatch Agent - detects remote desktop software on this machine and reports to the collector`,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single scan and exit (status 1 when remote access is detected)",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(scanOnce())
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start continuous monitoring",
	Run: func(cmd *cobra.Command, args []string) {
		runAgent()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("RemoteWatch Agent v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./remotewatch-agent.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "collector URL, overrides SERVER_URL")
	scanCmd.Flags().BoolVar(&jsonOut, "json", false, "print the verdict as JSON")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (*orchestrator.AgentOrchestrator, *zap.Logger) {
	cfg, err := config.LoadAgent(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(2)
	}
	if serverURL != "" {
		if err := cfg.OverrideServerURL(serverURL); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --server: %v\n", err)
			os.Exit(2)
		}
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(2)
	}

	if cfg.EnvFile != "" {
		logger.Info("Loaded environment file", zap.String("path", cfg.EnvFile))
	}
	if cfg.ConfigFile != "" {
		logger.Info("Loaded config file", zap.String("path", cfg.ConfigFile))
	}

	orch := orchestrator.NewAgentOrchestrator(cfg, logger)
	if err := orch.Start(); err != nil {
		logger.Fatal("Failed to start agent", zap.Error(err))
	}
	return orch, logger
}

func scanOnce() int {
	orch, logger := setup()
	defer logger.Sync()
	defer orch.Stop()

	v := orch.ScanOnce(context.Background())
	printVerdict(v)

	if v.Overall {
		return 1
	}
	return 0
}

func printVerdict(v models.ScanVerdict) {
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(v)
		return
	}

	fmt.Println(v.Summary)
	fmt.Printf("Severity: %s\n", v.Severity)
	for _, f := range v.MatchedFindings() {
		fmt.Printf("  [%s] %s: %s\n", f.Severity, f.Source, f.Detail)
		for _, item := range f.Items {
			fmt.Printf("    - %s\n", item)
		}
	}
}

func runAgent() {
	orch, logger := setup()
	defer logger.Sync()

	logger.Info("RemoteWatch Agent starting", zap.String("version", version))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Agent error", zap.Error(err))
	}

	if err := orch.Stop(); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	logger.Info("Agent stopped")
}
