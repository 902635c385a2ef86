package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/born-ml/born-train/internal/checkpoint"
	"github.com/born-ml/born-train/internal/config"
	"github.com/born-ml/born-train/internal/data"
	"github.com/born-ml/born-train/internal/optim"
	"github.com/born-ml/born-train/internal/telemetry"
	"github.com/born-ml/born-train/internal/trainer"
)

type trainOptions struct {
	configPath  string
	dataPath    string
	encoding    string
	features    int
	samples     int
	valSplit    float64
	logFormat   string
	verbosity   int
	metricsAddr string
}

func newTrainCmd() *cobra.Command {
	var opts trainOptions
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a regressor on synthetic data or a TSV text dataset",
		Long: `Train a two-layer regressor.

Without --data, samples come from a synthetic linear target. With --data, each
line is "target<TAB>text" and text is featurized with a tiktoken encoding.

Settings resolve from --config, then BORN_TRAIN_* environment variables, then flags.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd.Context(), cmd.OutOrStdout(), opts, cmd.Flags())
		},
	}

	fs := cmd.Flags()
	config.RegisterFlags(fs)
	fs.StringVar(&opts.configPath, "config", "", "YAML config file")
	fs.StringVar(&opts.dataPath, "data", "", "TSV dataset (target<TAB>text); synthetic data if empty")
	fs.StringVar(&opts.encoding, "encoding", "cl100k_base", "tiktoken encoding for --data")
	fs.IntVar(&opts.features, "features", 16, "feature width (synthetic dimension or token buckets)")
	fs.IntVar(&opts.samples, "samples", 1024, "number of synthetic samples")
	fs.Float64Var(&opts.valSplit, "val-split", 0.2, "fraction of samples held out for evaluation")
	fs.StringVar(&opts.logFormat, "log-format", "console", "log format: console or json")
	fs.IntVarP(&opts.verbosity, "verbosity", "v", 0, "log verbosity (1: steps and checkpoints, 2: batches)")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

func runTrain(ctx context.Context, out io.Writer, opts trainOptions, flags *pflag.FlagSet) error {
	cfg, err := config.Load(opts.configPath, flags)
	if err != nil {
		return err
	}
	if opts.valSplit < 0 || opts.valSplit >= 1 {
		return fmt.Errorf("val-split must be in [0, 1), got %v", opts.valSplit)
	}

	log, syncLog, err := newLogger(opts.logFormat, opts.verbosity)
	if err != nil {
		return err
	}
	defer syncLog()

	samples, err := loadSamples(opts, cfg.Seed)
	if err != nil {
		return err
	}
	trainSet, valSet := data.Split(samples, 1-opts.valSplit)
	if len(trainSet) == 0 {
		return errors.New("no training samples")
	}
	trainLoader, err := data.NewSliceLoader(trainSet, cfg.BatchSize, data.WithShuffle(cfg.Seed))
	if err != nil {
		return err
	}
	valLoader, err := data.NewSliceLoader(valSet, cfg.BatchSize)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, 1)) //nolint:gosec // G404: weight init
	model := NewRegressor(len(trainSet[0].Features), cfg.HiddenSize, float32(cfg.Dropout), rng)
	opt, err := newOptimizer(cfg, model)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	rec, err := telemetry.NewPrometheusRecorder(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if opts.metricsAddr != "" {
		shutdown := serveMetrics(opts.metricsAddr, reg, log)
		defer shutdown()
	}

	store, err := checkpoint.NewFileStore(cfg.CheckpointDir,
		checkpoint.WithKeep(cfg.CheckpointKeep),
		checkpoint.WithLogger(log.WithName("checkpoint")),
	)
	if err != nil {
		return err
	}
	if err := cfg.WriteYAML(filepath.Join(cfg.CheckpointDir, "config.yaml")); err != nil {
		return err
	}

	sess := trainer.NewSession(model, opt)
	if cfg.Resume {
		path, err := trainer.Resume(ctx, sess, store)
		if err != nil {
			return err
		}
		if path != "" {
			log.Info("resumed", "checkpoint", path, "epoch", sess.Epoch, "step", sess.Step)
		}
	}

	orchOpts := []trainer.Option{
		trainer.WithLogger(log.WithName("trainer")),
		trainer.WithRecorder(rec),
		trainer.WithCheckpointer(store),
		trainer.WithMetadata(map[string]string{
			"model":     "regressor",
			"optimizer": cfg.Optimizer,
			"features":  fmt.Sprint(len(trainSet[0].Features)),
		}),
	}
	if es := cfg.Stopper(); es != nil {
		orchOpts = append(orchOpts, trainer.WithStopCondition(es))
	}
	tc, err := cfg.Trainer()
	if err != nil {
		return err
	}

	var eval trainer.Loader[[]data.Sample]
	if len(valSet) > 0 {
		eval = valLoader
	}
	final, err := trainer.New[[]data.Sample](model, orchOpts...).Run(ctx, sess, trainLoader, eval, tc)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "run %s finished: epochs=%d steps=%d train_loss=%.6f val_loss=%.6f",
		sess.RunID, final.Epoch, final.Step, final.Train.Loss, final.Eval.Loss)
	if mae, ok := final.Eval.Metrics["mae"]; ok {
		fmt.Fprintf(out, " val_mae=%.6f", mae)
	}
	if final.StoppedEarly {
		fmt.Fprintf(out, " (stopped early: %s)", final.StopReason)
	}
	if final.LastCheckpoint != "" {
		fmt.Fprintf(out, "\ncheckpoint: %s", final.LastCheckpoint)
	}
	fmt.Fprintln(out)
	return nil
}

func loadSamples(opts trainOptions, seed uint64) ([]data.Sample, error) {
	if opts.dataPath == "" {
		if opts.samples <= 0 || opts.features <= 0 {
			return nil, errors.New("samples and features must be > 0")
		}
		return data.Synthetic(opts.samples, opts.features, seed), nil
	}

	f, err := os.Open(opts.dataPath)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	feat, err := data.NewTikTokenFeaturizer(opts.encoding, opts.features)
	if err != nil {
		return nil, err
	}
	return data.LoadTSV(f, feat)
}

func newOptimizer(cfg *config.Config, model *Regressor) (trainer.Optimizer, error) {
	params := model.Parameters()
	switch strings.ToLower(cfg.Optimizer) {
	case "sgd":
		return optim.NewSGD(params, optim.SGDConfig{LR: float32(cfg.LearningRate), Momentum: float32(cfg.Momentum)}), nil
	case "adam":
		return optim.NewAdam(params, optim.AdamConfig{LR: float32(cfg.LearningRate)}), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", cfg.Optimizer)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, log logr.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "metrics server stopped", "addr", addr)
		}
	}()
	log.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
