// shiplens answers shipment analytics questions over a daily-refreshed
// dataset snapshot, scoped to the consignee codes of the caller.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"shiplens/internal/analyst"
	"shiplens/internal/blob"
	"shiplens/internal/cache"
	"shiplens/internal/config"
	"shiplens/internal/engine"
	"shiplens/internal/llm"
	"shiplens/internal/usage"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	// ask flags
	codesFlag  string
	engineFlag string
	jsonOut    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "shiplens",
	Short: "shiplens - shipment analytics over authorized dataset views",
	Long: `shiplens keeps a daily snapshot of the shipment dataset cached locally
and answers analytics questions against it. Every answer is computed over the
rows the caller's consignee codes are authorized to see.`,
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

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one analytics question",
	Long: `Loads today's snapshot if needed, builds the authorized view for the
given consignee codes, and runs the question through the generation and
execution pipeline.

Example:
  shiplens ask --codes ACME01,ACME02 "how many containers arrive this week?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch today's snapshot and prewarm configured views",
	RunE:  runRefresh,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "shiplens.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	askCmd.Flags().StringVar(&codesFlag, "codes", "", "comma-separated consignee codes")
	askCmd.Flags().StringVar(&engineFlag, "engine", "", "execution engine override (sql or script)")
	askCmd.Flags().BoolVar(&jsonOut, "json", false, "emit the full answer as JSON")

	rootCmd.AddCommand(askCmd, refreshCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app bundles the wired components.
type app struct {
	cfg     *config.Config
	manager *cache.Manager
	service *analyst.Service
	tracker *usage.Tracker
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if engineFlag != "" {
		cfg.Analytics.Engine = engineFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	manager, err := cache.NewManager(store, cache.Config{
		Dir:       cfg.Cache.Dir,
		ObjectKey: cfg.Storage.ObjectKey,
		Mode:      cfg.Cache.Mode,
	}, logger)
	if err != nil {
		return nil, err
	}

	gen, err := llm.NewGeminiClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model, logger)
	if err != nil {
		return nil, err
	}

	tracker, err := usage.NewTracker(cfg.Cache.Dir)
	if err != nil {
		return nil, err
	}

	service, err := analyst.NewService(
		manager,
		gen,
		engine.NewScriptEngine(cfg.ScriptTimeout(), logger),
		engine.NewSQLEngine(logger),
		tracker,
		analyst.Config{
			Mode:       analyst.EngineMode(cfg.Analytics.Engine),
			SampleRows: cfg.Analytics.SampleRows,
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, manager: manager, service: service, tracker: tracker}, nil
}

// buildStore picks the snapshot source: S3 normally, an in-memory store
// seeded with demo data in test mode.
func buildStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	if cfg.Cache.Mode == "test" {
		return seededMemoryStore(cfg)
	}
	if cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("storage.bucket is required outside test mode")
	}
	return blob.NewS3(ctx, blob.S3Config{
		Region:    cfg.Storage.Region,
		Bucket:    cfg.Storage.Bucket,
		Endpoint:  cfg.Storage.Endpoint,
		PathStyle: cfg.Storage.PathStyle,
	}, logger)
}

// seededMemoryStore builds a snapshot from demo rows and serves it from
// memory, so test mode needs no bucket and no credentials.
func seededMemoryStore(cfg *config.Config) (blob.Store, error) {
	tmp, err := os.MkdirTemp("", "shiplens-seed-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	path := filepath.Join(tmp, "seed.db")
	if err := cache.WriteSnapshot(path, nil, demoShipments()); err != nil {
		return nil, fmt.Errorf("seed snapshot: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	store := blob.NewMemory()
	store.Put(cfg.Storage.ObjectKey, data)
	return store, nil
}

func demoShipments() []map[string]any {
	day := func(offset int) time.Time {
		return time.Now().AddDate(0, 0, offset).Truncate(24 * time.Hour)
	}
	return []map[string]any{
		{
			"container_number": "MSKU1000001", "po_numbers": "PO-1001",
			"shipment_status": "IN_OCEAN", "load_port": "SHANGHAI",
			"discharge_port": "LOS ANGELES", "final_destination": "CHICAGO, IL",
			"final_carrier_name": "MAERSK",
			"eta_dp_date":        day(4), "best_eta_dp_date": day(5),
			"eta_fd_date": day(11), "best_eta_fd_date": day(12),
			"cargo_weight_kg": 18500.0, "teus": 2.0, "dp_delayed_dur": 1.0,
			"consignee_codes": []string{"ACME01", "ACME02"},
		},
		{
			"container_number": "MSKU1000002", "po_numbers": "PO-1002",
			"shipment_status": "DELIVERED", "load_port": "NINGBO",
			"discharge_port": "LONG BEACH", "final_destination": "DALLAS, TX",
			"final_carrier_name": "CMA CGM",
			"eta_dp_date":        day(-9), "best_eta_dp_date": day(-9),
			"ata_dp_date": day(-8), "eta_fd_date": day(-2), "best_eta_fd_date": day(-1),
			"cargo_weight_kg": 21000.0, "teus": 4.0, "dp_delayed_dur": 0.0,
			"consignee_codes": []string{"ACME01"},
		},
		{
			"container_number": "HLCU2000003", "po_numbers": "PO-2001",
			"shipment_status": "AT_DISCHARGE_PORT", "load_port": "YANTIAN",
			"discharge_port": "SEATTLE", "final_destination": "DENVER, CO",
			"final_carrier_name": "HAPAG LLOYD",
			"eta_dp_date":        day(-1), "best_eta_dp_date": day(0),
			"ata_dp_date": day(0), "eta_fd_date": day(6), "best_eta_fd_date": day(7),
			"cargo_weight_kg": 9800.0, "teus": 1.0, "dp_delayed_dur": 2.0,
			"consignee_codes": []string{"GLOBEX"},
		},
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")

	var codes []string
	for _, c := range strings.Split(codesFlag, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.tracker.Save(); err != nil {
			logger.Warn("failed to persist usage", zap.Error(err))
		}
	}()

	answer, err := a.service.Answer(ctx, question, codes)
	if err != nil {
		var dae *cache.DataAccessError
		if errors.As(err, &dae) {
			fmt.Println("Sorry, the shipment dataset is unavailable right now. Please try again later.")
			logger.Error("data access failure", zap.Error(err))
			return nil
		}
		return err
	}

	if jsonOut {
		out, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println(answer.Text)
	if answer.Chart != nil {
		fmt.Printf("\n[%s chart: %s]\n", answer.Chart.Kind, answer.Chart.Title)
	}
	return nil
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}

	if _, err := a.manager.Master(ctx); err != nil {
		return err
	}
	logger.Info("snapshot ready")

	// Build the configured views concurrently; each request later hits the
	// view cache instead of filtering the master.
	g, gctx := errgroup.WithContext(ctx)
	for _, set := range a.cfg.Cache.Prewarm {
		codes := set
		g.Go(func() error {
			view, err := a.manager.View(gctx, codes)
			if err != nil {
				return err
			}
			logger.Info("view prewarmed",
				zap.Strings("codes", codes),
				zap.Int("rows", view.Count()))
			return nil
		})
	}
	return g.Wait()
}
