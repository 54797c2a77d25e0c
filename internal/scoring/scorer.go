// Package scoring turns file features into a bounded 0-100 score.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/himanishpuri/dolphain/pkg/models"
)

// Scoring modes.
const (
	ModeInterestingness = "interestingness"
	ModeUniqueness      = "unique"
)

// MaxScore is the upper bound of every score.
const MaxScore = 100.0

// ErrUnknownMode is returned by New for an unrecognised mode.
var ErrUnknownMode = errors.New("unknown scoring mode")

// Needs names the optional descriptors a scorer reads. The analyzer only
// computes what is asked for and leaves the rest nil.
type Needs struct {
	Spectral      bool
	ClickPatterns bool
}

// Scorer rates the features of one file. Implementations must return a value
// in [0, MaxScore] for any input, including empty or partial features.
type Scorer interface {
	Name() string
	Needs() Needs
	Score(f *models.FileFeatures) float64
}

// New returns the scorer for a mode. An empty mode selects interestingness.
func New(mode string) (Scorer, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeInterestingness:
		return Interestingness{}, nil
	case ModeUniqueness, "uniqueness":
		return Uniqueness{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// Modes lists the accepted mode names.
func Modes() []string {
	return []string{ModeInterestingness, ModeUniqueness}
}

// sub sanitises one component and clamps it to [0, limit].
func sub(v, limit float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Min(math.Max(v, 0), limit)
}
