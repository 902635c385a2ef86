// Package config loads born-train settings from a YAML file, BORN_TRAIN_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/born-train/internal/trainer"
)

// EnvPrefix is prepended to environment variable names, e.g. BORN_TRAIN_MAX_EPOCHS.
const EnvPrefix = "BORN_TRAIN"

// EarlyStopping configures trainer.EarlyStopping. Patience 0 disables it.
type EarlyStopping struct {
	Monitor  string  `mapstructure:"monitor" yaml:"monitor"`
	Patience int     `mapstructure:"patience" yaml:"patience"`
	MinDelta float64 `mapstructure:"min_delta" yaml:"min_delta"`
	Mode     string  `mapstructure:"mode" yaml:"mode"`
}

// Config captures the knobs of a training run.
type Config struct {
	AccumulateGradBatches int     `mapstructure:"accumulate_grad_batches" yaml:"accumulate_grad_batches"`
	MaxEpochs             int     `mapstructure:"max_epochs" yaml:"max_epochs"`
	CheckpointEveryEpoch  bool    `mapstructure:"checkpoint_every_epoch" yaml:"checkpoint_every_epoch"`
	GradReduction         string  `mapstructure:"grad_reduction" yaml:"grad_reduction"`
	GradientClipVal       float64 `mapstructure:"gradient_clip_val" yaml:"gradient_clip_val"`
	LogEveryNSteps        int     `mapstructure:"log_every_n_steps" yaml:"log_every_n_steps"`

	CheckpointDir  string `mapstructure:"checkpoint_dir" yaml:"checkpoint_dir"`
	CheckpointKeep int    `mapstructure:"checkpoint_keep" yaml:"checkpoint_keep"`
	Resume         bool   `mapstructure:"resume" yaml:"resume"`

	EarlyStopping EarlyStopping `mapstructure:"early_stopping" yaml:"early_stopping"`

	Seed         uint64  `mapstructure:"seed" yaml:"seed"`
	BatchSize    int     `mapstructure:"batch_size" yaml:"batch_size"`
	LearningRate float64 `mapstructure:"learning_rate" yaml:"learning_rate"`
	Optimizer    string  `mapstructure:"optimizer" yaml:"optimizer"`
	Momentum     float64 `mapstructure:"momentum" yaml:"momentum"`
	HiddenSize   int     `mapstructure:"hidden_size" yaml:"hidden_size"`
	Dropout      float64 `mapstructure:"dropout" yaml:"dropout"`
}

// defaults lists every key with its default value; viper only resolves
// environment variables for keys it knows.
var defaults = map[string]any{
	"accumulate_grad_batches":  1,
	"max_epochs":               10,
	"checkpoint_every_epoch":   true,
	"grad_reduction":           "sum",
	"gradient_clip_val":        0.0,
	"log_every_n_steps":        50,
	"checkpoint_dir":           "checkpoints",
	"checkpoint_keep":          3,
	"resume":                   false,
	"early_stopping.monitor":   "val_loss",
	"early_stopping.patience":  0,
	"early_stopping.min_delta": 0.0,
	"early_stopping.mode":      "min",
	"seed":                     42,
	"batch_size":               32,
	"learning_rate":            0.01,
	"optimizer":                "sgd",
	"momentum":                 0.9,
	"hidden_size":              32,
	"dropout":                  0.1,
}

// FlagKey maps a flag name to its config key: dashes become underscores and
// "early-stopping-" becomes the "early_stopping." section.
func FlagKey(flag string) string {
	key := strings.ReplaceAll(flag, "-", "_")
	if rest, ok := strings.CutPrefix(key, "early_stopping_"); ok {
		return "early_stopping." + rest
	}
	return key
}

// RegisterFlags defines a flag for every config key on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Int("accumulate-grad-batches", d.AccumulateGradBatches, "micro-batches per optimizer step")
	fs.Int("max-epochs", d.MaxEpochs, "number of epochs to train")
	fs.Bool("checkpoint-every-epoch", d.CheckpointEveryEpoch, "write a checkpoint after every epoch")
	fs.String("grad-reduction", d.GradReduction, "combine accumulated gradients by sum or mean")
	fs.Float64("gradient-clip-val", d.GradientClipVal, "clip gradients to this global norm (0 disables)")
	fs.Int("log-every-n-steps", d.LogEveryNSteps, "log progress every N optimizer steps")
	fs.String("checkpoint-dir", d.CheckpointDir, "checkpoint directory")
	fs.Int("checkpoint-keep", d.CheckpointKeep, "number of checkpoints to keep (0 keeps all)")
	fs.Bool("resume", d.Resume, "resume from the latest checkpoint in checkpoint-dir")
	fs.String("early-stopping-monitor", d.EarlyStopping.Monitor, "value monitored by early stopping")
	fs.Int("early-stopping-patience", d.EarlyStopping.Patience, "epochs without improvement before stopping (0 disables)")
	fs.Float64("early-stopping-min-delta", d.EarlyStopping.MinDelta, "minimum change counted as improvement")
	fs.String("early-stopping-mode", d.EarlyStopping.Mode, "min or max")
	fs.Uint64("seed", d.Seed, "random seed")
	fs.Int("batch-size", d.BatchSize, "samples per micro-batch")
	fs.Float64("learning-rate", d.LearningRate, "optimizer learning rate")
	fs.String("optimizer", d.Optimizer, "sgd or adam")
	fs.Float64("momentum", d.Momentum, "SGD momentum")
	fs.Int("hidden-size", d.HiddenSize, "hidden layer width")
	fs.Float64("dropout", d.Dropout, "dropout probability")
}

// Default returns the built-in configuration.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	// Defaults are well-typed literals; decoding cannot fail.
	_ = v.Unmarshal(&c) //nolint:errcheck // see above
	return c
}

// Load resolves the configuration. path may be empty; flags may be nil.
// Only flags that were set on the command line override file and environment values.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := FlagKey(f.Name)
			if _, ok := defaults[key]; !ok || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	tc, err := c.Trainer()
	if err != nil {
		return err
	}
	if err := tc.Validate(); err != nil {
		return err
	}
	if es := c.Stopper(); es != nil {
		if err := es.Validate(); err != nil {
			return err
		}
	}

	switch {
	case c.CheckpointKeep < 0:
		return &trainer.ConfigurationError{Field: "checkpoint_keep", Value: c.CheckpointKeep, Reason: "must be >= 0"}
	case c.BatchSize <= 0:
		return &trainer.ConfigurationError{Field: "batch_size", Value: c.BatchSize, Reason: "must be > 0"}
	case c.LearningRate <= 0:
		return &trainer.ConfigurationError{Field: "learning_rate", Value: c.LearningRate, Reason: "must be > 0"}
	case c.Momentum < 0 || c.Momentum >= 1:
		return &trainer.ConfigurationError{Field: "momentum", Value: c.Momentum, Reason: "must be in [0, 1)"}
	case c.HiddenSize <= 0:
		return &trainer.ConfigurationError{Field: "hidden_size", Value: c.HiddenSize, Reason: "must be > 0"}
	case c.Dropout < 0 || c.Dropout >= 1:
		return &trainer.ConfigurationError{Field: "dropout", Value: c.Dropout, Reason: "must be in [0, 1)"}
	}
	switch strings.ToLower(c.Optimizer) {
	case "sgd", "adam":
	default:
		return &trainer.ConfigurationError{Field: "optimizer", Value: c.Optimizer, Reason: "must be sgd or adam"}
	}
	if c.Resume && c.CheckpointDir == "" {
		return &trainer.ConfigurationError{Field: "resume", Reason: "requires checkpoint_dir"}
	}
	return nil
}

// Trainer returns the orchestrator options.
func (c *Config) Trainer() (trainer.Config, error) {
	red, err := trainer.ParseReduction(c.GradReduction)
	if err != nil {
		return trainer.Config{}, err
	}
	return trainer.Config{
		AccumulateGradBatches: c.AccumulateGradBatches,
		MaxEpochs:             c.MaxEpochs,
		CheckpointEveryEpoch:  c.CheckpointEveryEpoch,
		GradReduction:         red,
		GradientClipVal:       c.GradientClipVal,
		LogEveryNSteps:        c.LogEveryNSteps,
	}, nil
}

// Stopper returns the early stopping condition, or nil when patience is 0.
func (c *Config) Stopper() *trainer.EarlyStopping {
	if c.EarlyStopping.Patience == 0 {
		return nil
	}
	return &trainer.EarlyStopping{
		Monitor:  c.EarlyStopping.Monitor,
		Patience: c.EarlyStopping.Patience,
		MinDelta: c.EarlyStopping.MinDelta,
		Mode:     c.EarlyStopping.Mode,
	}
}

// WriteYAML writes the resolved configuration to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
