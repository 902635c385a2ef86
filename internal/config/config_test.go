package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/born-train/internal/trainer"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.AccumulateGradBatches)
	assert.True(t, cfg.CheckpointEveryEpoch)
	assert.Equal(t, "sum", cfg.GradReduction)
	assert.Equal(t, "val_loss", cfg.EarlyStopping.Monitor)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Nil(t, cfg.Stopper())
	assert.Equal(t, Default(), *cfg)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, `
max_epochs: 5
accumulate_grad_batches: 4
grad_reduction: mean
early_stopping:
  patience: 2
  mode: max
`)
	t.Setenv("BORN_TRAIN_MAX_EPOCHS", "7")
	t.Setenv("BORN_TRAIN_EARLY_STOPPING_MIN_DELTA", "0.05")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--batch-size=8", "--early-stopping-monitor=val_mae"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.MaxEpochs, "env overrides file")
	assert.Equal(t, 4, cfg.AccumulateGradBatches, "file overrides default")
	assert.Equal(t, 8, cfg.BatchSize, "flag overrides default")
	assert.Equal(t, 0.01, cfg.LearningRate, "unset flag keeps default")
	assert.Equal(t, "val_mae", cfg.EarlyStopping.Monitor)
	assert.Equal(t, 2, cfg.EarlyStopping.Patience)
	assert.InDelta(t, 0.05, cfg.EarlyStopping.MinDelta, 1e-12)

	tc, err := cfg.Trainer()
	require.NoError(t, err)
	assert.Equal(t, trainer.ReductionMean, tc.GradReduction)
	assert.Equal(t, 4, tc.AccumulateGradBatches)

	es := cfg.Stopper()
	require.NotNil(t, es)
	assert.Equal(t, "max", es.Mode)
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	t.Setenv("BORN_TRAIN_ACCUMULATE_GRAD_BATCHES", "3")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--accumulate-grad-batches=6"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.AccumulateGradBatches)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"zero accumulation", "accumulate_grad_batches: 0", "accumulate_grad_batches"},
		{"negative epochs", "max_epochs: -1", "max_epochs"},
		{"bad reduction", "grad_reduction: median", "grad_reduction"},
		{"negative clip", "gradient_clip_val: -1", "gradient_clip_val"},
		{"bad optimizer", "optimizer: lbfgs", "optimizer"},
		{"bad dropout", "dropout: 1.5", "dropout"},
		{"bad early stopping mode", "early_stopping: {patience: 1, mode: up}", "early_stopping.mode"},
		{"zero batch size", "batch_size: 0", "batch_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.yaml), nil)
			var cfgErr *trainer.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.AccumulateGradBatches = 3
	cfg.Optimizer = "adam"
	cfg.EarlyStopping.Patience = 4

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	got, err := Load(path, nil)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, *got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestFlagKey(t *testing.T) {
	assert.Equal(t, "max_epochs", FlagKey("max-epochs"))
	assert.Equal(t, "early_stopping.min_delta", FlagKey("early-stopping-min-delta"))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	fs.VisitAll(func(f *pflag.Flag) {
		_, ok := defaults[FlagKey(f.Name)]
		assert.True(t, ok, "flag %s has no config key", f.Name)
	})
}
