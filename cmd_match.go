package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/username/tradelink/src/config"
	"github.com/username/tradelink/src/database"
	"github.com/username/tradelink/src/logger"
	"github.com/username/tradelink/src/models"
	"github.com/username/tradelink/src/parsers"
	"github.com/username/tradelink/src/processors"
	"github.com/username/tradelink/src/services"
	"github.com/username/tradelink/src/utils"
)

type matchOptions struct {
	inputs    []string
	signals   []string
	results   []string
	format    string
	threshold float64
	out       string
	persist   bool
	notify    bool
}

func newMatchCmd() *cobra.Command {
	opts := &matchOptions{}
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Reconcile one batch of observation exports",
		Long: `Reads observation exports (JSON or CSV), links signals to results and writes the
analysis report. Files given with --signals or --results have their kind forced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd.Context(), cmd.OutOrStdout(), opts, cmd.Flags().Changed("threshold"))
		},
	}

	cmd.Flags().StringSliceVarP(&opts.inputs, "input", "i", nil, "Observation export(s) carrying their own kind")
	cmd.Flags().StringSliceVar(&opts.signals, "signals", nil, "Observation export(s) to read as signals")
	cmd.Flags().StringSliceVar(&opts.results, "results", nil, "Observation export(s) to read as results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Input format (json|csv); guessed from the extension when empty")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", processors.DefaultAutoMatchThreshold, "Auto match threshold override")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "-", "Report destination, '-' for stdout")
	cmd.Flags().BoolVar(&opts.persist, "persist", false, "Store the run in the configured database")
	cmd.Flags().BoolVar(&opts.notify, "notify", false, "Send the run summary through the configured notifier")
	return cmd
}

func runMatch(ctx context.Context, stdout io.Writer, opts *matchOptions, thresholdSet bool) error {
	if len(opts.inputs)+len(opts.signals)+len(opts.results) == 0 {
		return fmt.Errorf("no input given: use --input, --signals or --results")
	}

	registry, err := utils.LoadCoinRegistry(config.Cfg.KnownCoinsPath, config.Cfg.KnownCoins...)
	if err != nil {
		return err
	}

	var observations []models.RawObservation
	for _, group := range []struct {
		paths []string
		kind  models.Kind
	}{
		{opts.signals, models.KindSignal},
		{opts.results, models.KindResult},
		{opts.inputs, ""},
	} {
		for _, path := range group.paths {
			obs, err := readObservations(path, opts.format, group.kind)
			if err != nil {
				return err
			}
			observations = append(observations, obs...)
		}
	}

	var store services.RunRepository
	if opts.persist {
		db, err := database.Open(config.Cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()
		store = database.NewRunStore(db)
	}

	var notifier services.Notifier
	if opts.notify {
		notifier = services.NewNotifier(config.Cfg)
	}

	svc := services.NewReconcileService(
		config.Cfg.MatchConfig(),
		processors.NewRecordBuilder(processors.NewCoinNormalizer(registry)),
		store, nil, nil, notifier,
	)

	var reconcileOpts services.ReconcileOptions
	if thresholdSet {
		reconcileOpts.Threshold = &opts.threshold
	}
	run, err := svc.Reconcile(ctx, observations, reconcileOpts)
	if err != nil {
		return err
	}

	if opts.out == "-" || opts.out == "" {
		return services.WriteReport(stdout, *run)
	}

	f, err := os.Create(opts.out)
	if err != nil {
		return fmt.Errorf("failed to create report file '%s': %w", opts.out, err)
	}
	defer f.Close()
	if err := services.WriteReport(f, *run); err != nil {
		return err
	}
	logger.L.Info("Report written", "path", opts.out, "runID", run.ID, "trades", run.Summary.TotalTrades)
	fmt.Fprintf(stdout, "run %s: %d trades (%d matched, %d signal only, %d result only), %d unusable -> %s\n",
		run.ID, run.Summary.TotalTrades, run.Summary.Matched, run.Summary.SignalOnly, run.Summary.ResultOnly,
		len(run.Unusable), opts.out)
	return nil
}

func readObservations(path, format string, kind models.Kind) ([]models.RawObservation, error) {
	if format == "" {
		format = parsers.FormatFromFilename(path)
	}
	parser, err := parsers.GetParser(format)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s': %w", path, err)
	}
	defer f.Close()

	obs, err := parsers.WithKind(parser, kind).Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse '%s': %w", path, err)
	}
	logger.L.Info("Observations loaded", "path", path, "format", format, "count", len(obs), "forcedKind", kind)
	return obs, nil
}
