// Package config loads the nmt configuration from defaults, flags,
// NMT_-prefixed environment variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Data      DataConfig      `mapstructure:"data"`
	Model     ModelConfig     `mapstructure:"model"`
	Train     TrainConfig     `mapstructure:"train"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Translate TranslateConfig `mapstructure:"translate"`
	LogLevel  string          `mapstructure:"log_level"`
}

type PathsConfig struct {
	Corpus     string `mapstructure:"corpus"`
	Checkpoint string `mapstructure:"checkpoint"`
	VocabDir   string `mapstructure:"vocab_dir"`
}

type DataConfig struct {
	MaxSamples  int     `mapstructure:"max_samples"`
	ValFraction float64 `mapstructure:"val_fraction"`
	Seed        uint64  `mapstructure:"seed"`
}

type ModelConfig struct {
	EmbeddingDim int `mapstructure:"embedding_dim"`
	HiddenUnits  int `mapstructure:"hidden_units"`
}

type TrainConfig struct {
	Epochs       int     `mapstructure:"epochs"`
	BatchSize    int     `mapstructure:"batch_size"`
	LearningRate float64 `mapstructure:"learning_rate"`
}

type RuntimeConfig struct {
	Target  string `mapstructure:"target"`
	Threads int    `mapstructure:"threads"`
}

type TranslateConfig struct {
	MaxSteps int `mapstructure:"max_steps"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			Corpus:     "data/fra.txt",
			Checkpoint: "models/best_model.safetensors",
			VocabDir:   "",
		},
		Data: DataConfig{
			MaxSamples:  33000,
			ValFraction: 0.1,
			Seed:        42,
		},
		Model: ModelConfig{
			EmbeddingDim: 256,
			HiddenUnits:  256,
		},
		Train: TrainConfig{
			Epochs:       30,
			BatchSize:    128,
			LearningRate: 0.001,
		},
		Runtime: RuntimeConfig{
			Target:  TargetAuto,
			Threads: 0,
		},
		Translate: TranslateConfig{
			MaxSteps: 50,
		},
		LogLevel: "info",
	}
}

// flagKeys maps each config key to the flag that overrides it.
var flagKeys = []struct {
	key  string
	flag string
}{
	{"paths.corpus", "corpus"},
	{"paths.checkpoint", "checkpoint"},
	{"paths.vocab_dir", "vocab-dir"},
	{"data.max_samples", "max-samples"},
	{"data.val_fraction", "val-fraction"},
	{"data.seed", "seed"},
	{"model.embedding_dim", "embedding-dim"},
	{"model.hidden_units", "hidden-units"},
	{"train.epochs", "epochs"},
	{"train.batch_size", "batch-size"},
	{"train.learning_rate", "learning-rate"},
	{"runtime.target", "target"},
	{"runtime.threads", "threads"},
	{"translate.max_steps", "max-steps"},
	{"log_level", "log-level"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("corpus", defaults.Paths.Corpus, "Path to the tab-separated sentence-pair corpus")
	fs.String("checkpoint", defaults.Paths.Checkpoint, "Path of the best-model safetensors checkpoint")
	fs.String("vocab-dir", defaults.Paths.VocabDir, "Directory for vocabulary files (default: next to the checkpoint)")
	fs.Int("max-samples", defaults.Data.MaxSamples, "Maximum number of corpus records to read (0 = all)")
	fs.Float64("val-fraction", defaults.Data.ValFraction, "Fraction of samples held out for validation")
	fs.Uint64("seed", defaults.Data.Seed, "Seed for splitting, shuffling and weight initialization")
	fs.Int("embedding-dim", defaults.Model.EmbeddingDim, "Embedding width")
	fs.Int("hidden-units", defaults.Model.HiddenUnits, "LSTM hidden state width")
	fs.Int("epochs", defaults.Train.Epochs, "Number of training epochs")
	fs.Int("batch-size", defaults.Train.BatchSize, "Mini-batch size")
	fs.Float64("learning-rate", defaults.Train.LearningRate, "Adam learning rate")
	fs.String("target", defaults.Runtime.Target, "Execution target (auto|cpu-generic|cpu-avx2|cpu-neon)")
	fs.Int("threads", defaults.Runtime.Threads, "Worker goroutines for inference kernels (0 = GOMAXPROCS)")
	fs.Int("max-steps", defaults.Translate.MaxSteps, "Maximum decoded tokens per translation")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("NMT")
	replacer := strings.NewReplacer("-", "_", ".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("nmt")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := ValidateValFraction(cfg.Data.ValFraction); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ValidateValFraction rejects validation fractions outside [0, 1).
func ValidateValFraction(f float64) error {
	if !(f >= 0 && f < 1) {
		return fmt.Errorf("data.val_fraction must be in [0, 1), got %g", f)
	}

	return nil
}

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.corpus", c.Paths.Corpus)
	v.SetDefault("paths.checkpoint", c.Paths.Checkpoint)
	v.SetDefault("paths.vocab_dir", c.Paths.VocabDir)
	v.SetDefault("data.max_samples", c.Data.MaxSamples)
	v.SetDefault("data.val_fraction", c.Data.ValFraction)
	v.SetDefault("data.seed", c.Data.Seed)
	v.SetDefault("model.embedding_dim", c.Model.EmbeddingDim)
	v.SetDefault("model.hidden_units", c.Model.HiddenUnits)
	v.SetDefault("train.epochs", c.Train.Epochs)
	v.SetDefault("train.batch_size", c.Train.BatchSize)
	v.SetDefault("train.learning_rate", c.Train.LearningRate)
	v.SetDefault("runtime.target", c.Runtime.Target)
	v.SetDefault("runtime.threads", c.Runtime.Threads)
	v.SetDefault("translate.max_steps", c.Translate.MaxSteps)
	v.SetDefault("log_level", c.LogLevel)
}

// bindFlags binds every registered flag to its nested key, so a flag only
// wins over env and file values when the user actually set it.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}

		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", fk.flag, err)
		}
	}

	return nil
}
