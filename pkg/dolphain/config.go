package dolphain

import (
	"github.com/himanishpuri/dolphain/internal/batch"
	"github.com/himanishpuri/dolphain/internal/config"
	"github.com/himanishpuri/dolphain/internal/denoise"
	"github.com/himanishpuri/dolphain/internal/detect"
)

type Config struct {
	Mode            string
	Seed            uint64
	NFiles          int
	OutputDir       string
	CheckpointEvery int
	TopN            int
	Wavelet         string
	Chirp           detect.ChirpParams
	Click           detect.ClickParams
	DBPath          string
	DisableIndex    bool
	S3              config.S3Config
	Logger          Logger
	Observer        Observer
	Index           Index
	Publisher       Publisher
}

type Option func(*Config)

func WithMode(mode string) Option {
	return func(c *Config) {
		c.Mode = mode
	}
}

func WithSeed(seed uint64) Option {
	return func(c *Config) {
		c.Seed = seed
	}
}

// WithNFiles limits a run to a random sample of n files. Zero keeps all.
func WithNFiles(n int) Option {
	return func(c *Config) {
		c.NFiles = n
	}
}

func WithOutputDir(dir string) Option {
	return func(c *Config) {
		c.OutputDir = dir
	}
}

func WithCheckpointEvery(n int) Option {
	return func(c *Config) {
		c.CheckpointEvery = n
	}
}

func WithTopN(n int) Option {
	return func(c *Config) {
		c.TopN = n
	}
}

func WithWavelet(name string) Option {
	return func(c *Config) {
		c.Wavelet = name
	}
}

func WithChirpParams(p detect.ChirpParams) Option {
	return func(c *Config) {
		c.Chirp = p
	}
}

func WithClickParams(p detect.ClickParams) Option {
	return func(c *Config) {
		c.Click = p
	}
}

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithoutIndex skips the SQLite results index entirely.
func WithoutIndex() Option {
	return func(c *Config) {
		c.DisableIndex = true
	}
}

// WithS3 publishes outputs to the configured bucket after each run.
func WithS3(s3 config.S3Config) Option {
	return func(c *Config) {
		c.S3 = s3
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithObserver(obs Observer) Option {
	return func(c *Config) {
		c.Observer = obs
	}
}

// WithIndex replaces the SQLite index.
func WithIndex(idx Index) Option {
	return func(c *Config) {
		c.Index = idx
	}
}

// WithPublisher replaces the S3 publisher.
func WithPublisher(p Publisher) Option {
	return func(c *Config) {
		c.Publisher = p
	}
}

// FromEnv copies settings loaded by config.Load. Options applied after it
// override the environment.
func FromEnv(env *config.Config) Option {
	return func(c *Config) {
		c.Mode = env.Mode
		c.Seed = env.Seed
		c.NFiles = env.NFiles
		c.OutputDir = env.OutputDir
		c.CheckpointEvery = env.CheckpointEvery
		c.TopN = env.TopN
		c.Wavelet = env.Wavelet
		c.Chirp = env.Chirp
		c.Click = env.Click
		c.DBPath = env.DBPath
		c.DisableIndex = env.NoIndex
		c.S3 = env.S3
	}
}

func defaultConfig() *Config {
	return &Config{
		Mode:            ModeInterestingness,
		Seed:            batch.DefaultSeed,
		OutputDir:       "results",
		CheckpointEvery: batch.DefaultCheckpointEvery,
		TopN:            batch.DefaultTopN,
		Wavelet:         denoise.DefaultWavelet,
		Chirp:           detect.DefaultChirpParams(),
		Click:           detect.DefaultClickParams(),
		DBPath:          "dolphain.sqlite3",
	}
}
