// Package config loads run settings from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"

	"github.com/himanishpuri/dolphain/internal/denoise"
	"github.com/himanishpuri/dolphain/internal/detect"
	"github.com/himanishpuri/dolphain/internal/scoring"
	"github.com/himanishpuri/dolphain/pkg/logger"
)

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("config: invalid configuration")
	// ErrS3BucketRequired is returned when publishing is enabled without a bucket.
	ErrS3BucketRequired = errors.New("config: DOLPHAIN_S3_BUCKET is required when publishing")
)

// Config holds everything one batch run needs.
type Config struct {
	// Run settings
	Mode            string `env:"DOLPHAIN_MODE, default=interestingness" json:"mode"`
	Seed            uint64 `env:"DOLPHAIN_SEED, default=42" json:"seed"`
	NFiles          int    `env:"DOLPHAIN_N_FILES, default=0" json:"n_files" validate:"gte=0"`
	DataDir         string `env:"DOLPHAIN_DATA_DIR" json:"data_dir,omitempty"`
	FileList        string `env:"DOLPHAIN_FILE_LIST" json:"file_list,omitempty"`
	OutputDir       string `env:"DOLPHAIN_OUTPUT_DIR, default=results" json:"output_dir" validate:"required"`
	CheckpointEvery int    `env:"DOLPHAIN_CHECKPOINT_EVERY, default=10" json:"checkpoint_every" validate:"gte=1"`
	TopN            int    `env:"DOLPHAIN_TOP_N, default=20" json:"top_n" validate:"gte=1"`

	// Signal processing
	Wavelet string             `env:"DOLPHAIN_WAVELET, default=db20" json:"wavelet"`
	Chirp   detect.ChirpParams `env:", prefix=CHIRP_" json:"chirp"`
	Click   detect.ClickParams `env:", prefix=CLICK_" json:"click"`

	// Results index
	DBPath  string `env:"DOLPHAIN_DB_PATH, default=dolphain.sqlite3" json:"db_path"`
	NoIndex bool   `env:"DOLPHAIN_NO_INDEX, default=false" json:"no_index"`

	// Optional S3 publishing
	S3 S3Config `env:", prefix=DOLPHAIN_S3_" json:"s3"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`
	LogCaller bool   `env:"LOG_CALLER, default=false" json:"log_caller"`
}

// S3Config points the publisher at a bucket. Credentials fall back to the
// default AWS chain when the static keys are empty.
type S3Config struct {
	Bucket          string `env:"BUCKET" json:"bucket,omitempty"`
	Region          string `env:"REGION, default=us-east-1" json:"region"`
	Prefix          string `env:"PREFIX, default=dolphain" json:"prefix"`
	Endpoint        string `env:"ENDPOINT" json:"endpoint,omitempty" validate:"omitempty,url"`
	UsePathStyle    bool   `env:"USE_PATH_STYLE, default=false" json:"use_path_style"`
	AccessKeyID     string `env:"ACCESS_KEY_ID" json:"-"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY" json:"-"`
}

// Enabled reports whether outputs should be published.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// Load reads the configuration from the process environment and validates it.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads the configuration through l, e.g. a MapLookuper in tests.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags first, then the rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if _, err := scoring.New(c.Mode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := denoise.Wavelet(c.Wavelet); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Chirp.Validate(); err != nil {
		return fmt.Errorf("%w: chirp: %v", ErrInvalidConfig, err)
	}
	if err := c.Click.Validate(); err != nil {
		return fmt.Errorf("%w: click: %v", ErrInvalidConfig, err)
	}
	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.LogLevel)
	}
	if c.S3.Endpoint != "" && !c.S3.Enabled() {
		return ErrS3BucketRequired
	}
	return nil
}

// String renders the config with credentials masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Mode: %s, Seed: %d, NFiles: %d, OutputDir: %s, CheckpointEvery: %d, TopN: %d, Wavelet: %s, DBPath: %s, S3Bucket: %s, LogLevel: %s}",
		c.Mode,
		c.Seed,
		c.NFiles,
		c.OutputDir,
		c.CheckpointEvery,
		c.TopN,
		c.Wavelet,
		c.DBPath,
		c.S3.Bucket,
		c.LogLevel,
	)
}
