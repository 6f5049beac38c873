package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/api"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/catalog"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/config"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/logging"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/profile"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/simulate"
	"github.com/vinoth12345678910/Smart-Bill-Predictor/internal/tariffcache"
)

var (
	flagRequest string
	flagPlans   string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a one-shot bill simulation from a request file",
	Long:  `Reads a simulation request (JSON) from a file or stdin, prices it against the configured plan set and prints the run as JSON on stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimulate()
	},
}

func init() {
	simulateCmd.Flags().StringVarP(&flagRequest, "request", "f", "-", `Request file ("-" reads stdin)`)
	simulateCmd.Flags().StringVar(&flagPlans, "plans", "", "Plans file (defaults to PLANS_PATH, then the embedded set)")
}

func runSimulate() error {
	cfg := config.FromEnv()
	if flagPlans != "" {
		cfg.PlansPath = flagPlans
	}

	// One-shot runs keep stderr quiet unless the operator asks for more.
	level := cfg.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	logger := logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     level,
		Component: "smartbill",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var raw []byte
	var err error
	if flagRequest == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(flagRequest)
	}
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}

	var req simulate.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("parse request: %w", err)
	}
	if req.StartMonth == "" {
		req.StartMonth = profile.FormatMonth(time.Now())
	}
	if req.Months == 0 {
		req.Months = 12
	}

	cat := catalog.New(logger)
	for _, src := range buildSources(cfg) {
		if _, err := cat.Refresh(ctx, src); err != nil {
			return fmt.Errorf("load plans: %w", err)
		}
	}

	cache := tariffcache.New(cfg.CacheCapacity, logger)
	sim := simulate.New(cat, cache, logger)

	run, err := sim.Run(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(api.ToRunDTO(run, time.Now().UTC()))
}
