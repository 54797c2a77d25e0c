package dolphain

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/dolphain/internal/audio"
	"github.com/himanishpuri/dolphain/internal/batch"
	"github.com/himanishpuri/dolphain/internal/config"
)

const testFs = 96000

// recording is 1 s of low noise, with an 8 kHz upsweep when chirp is set.
func recording(t *testing.T, dir, name string, seed uint64, chirp bool) string {
	t.Helper()
	r := rand.New(rand.NewPCG(seed, seed+1))
	x := make([]float64, testFs)
	for i := range x {
		x[i] = 0.01 * r.NormFloat64()
	}
	if chirp {
		start, count := testFs/4, testFs/2
		k := 8000 / 0.5
		for i := 0; i < count; i++ {
			tt := float64(i) / testFs
			gain := math.Min(1, math.Min(tt, 0.5-tt)/0.005)
			x[start+i] += gain * math.Sin(2*math.Pi*(2000*tt+0.5*k*tt*tt))
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, audio.WriteWAV(path, audio.Normalize(x), testFs))
	return path
}

type stubPublisher struct {
	runID string
	paths []string
}

func (p *stubPublisher) Publish(_ context.Context, runID string, paths []string) ([]string, error) {
	p.runID = runID
	p.paths = paths
	return []string{"s3://bucket/" + runID}, nil
}

func TestNewService_Invalid(t *testing.T) {
	_, err := NewService(WithMode("loudest"), WithoutIndex())
	assert.Error(t, err)

	_, err = NewService(WithWavelet("sym2"), WithoutIndex())
	assert.Error(t, err)
}

func TestFind_IndexesAndPublishes(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		recording(t, dir, "a.wav", 1, true),
		recording(t, dir, "b.wav", 2, false),
		recording(t, dir, "c.wav", 3, false),
	}
	pub := &stubPublisher{}

	svc, err := NewService(
		WithOutputDir(filepath.Join(dir, "out")),
		WithDBPath(filepath.Join(dir, "index.sqlite3")),
		WithTopN(2),
		WithPublisher(pub),
	)
	require.NoError(t, err)
	defer svc.Close()

	report, err := svc.Find(context.Background(), files, false)
	require.NoError(t, err)
	assert.False(t, report.Interrupted())
	assert.Equal(t, batch.StateCompleted, report.Run.State())
	assert.Len(t, report.Run.Results, 3)
	assert.Equal(t, 3, report.Summary.Total)

	for _, out := range report.Outputs {
		_, err := os.Stat(out)
		assert.NoError(t, err, out)
	}
	assert.Equal(t, report.Run.RunID, pub.runID)
	assert.Equal(t, report.Outputs, pub.paths)
	assert.Equal(t, []string{"s3://bucket/" + report.Run.RunID}, report.Published)

	runs, err := svc.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.Run.RunID, runs[0].ID)
	assert.Equal(t, ModeInterestingness, runs[0].Mode)

	top, err := svc.TopFiles(context.Background(), 1, "")
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, report.Run.Ranked()[0].Path, top[0].Path)
}

func TestFind_WithoutIndex(t *testing.T) {
	dir := t.TempDir()
	svc, err := NewService(WithOutputDir(filepath.Join(dir, "out")), WithoutIndex(), WithMode(ModeUniqueness))
	require.NoError(t, err)
	defer svc.Close()

	report, err := svc.Find(context.Background(), []string{recording(t, dir, "a.wav", 4, true)}, false)
	require.NoError(t, err)
	assert.Equal(t, ModeUniqueness, report.Run.Mode)

	_, err = svc.TopFiles(context.Background(), 5, "")
	assert.True(t, errors.Is(err, ErrIndexDisabled))
	_, err = svc.ListRuns(context.Background())
	assert.ErrorIs(t, err, ErrIndexDisabled)
}

func TestFind_NoFiles(t *testing.T) {
	svc, err := NewService(WithOutputDir(t.TempDir()), WithoutIndex())
	require.NoError(t, err)

	_, err = svc.Find(context.Background(), nil, false)
	assert.ErrorIs(t, err, batch.ErrNoFiles)
}

func TestAnalyzeFile(t *testing.T) {
	dir := t.TempDir()
	svc, err := NewService(WithoutIndex())
	require.NoError(t, err)

	res := svc.AnalyzeFile(context.Background(), recording(t, dir, "a.wav", 5, true))
	require.False(t, res.Failed())
	assert.NotEmpty(t, res.Features.Chirps)
	assert.Equal(t, float64(testFs), res.SampleRate)

	missing := svc.AnalyzeFile(context.Background(), filepath.Join(dir, "nope.wav"))
	assert.True(t, missing.Failed())
	assert.Zero(t, missing.Score)
}

func TestFromEnv(t *testing.T) {
	env := &config.Config{
		Mode:            ModeUniqueness,
		Seed:            9,
		NFiles:          50,
		OutputDir:       "/data/out",
		CheckpointEvery: 3,
		TopN:            7,
		Wavelet:         "db8",
		DBPath:          "/data/index.sqlite3",
		NoIndex:         true,
		S3:              config.S3Config{Bucket: "b"},
	}

	cfg := defaultConfig()
	for _, opt := range []Option{FromEnv(env), WithSeed(11)} {
		opt(cfg)
	}

	assert.Equal(t, ModeUniqueness, cfg.Mode)
	assert.Equal(t, uint64(11), cfg.Seed, "later options override the environment")
	assert.Equal(t, 50, cfg.NFiles)
	assert.Equal(t, "/data/out", cfg.OutputDir)
	assert.Equal(t, 3, cfg.CheckpointEvery)
	assert.Equal(t, 7, cfg.TopN)
	assert.Equal(t, "db8", cfg.Wavelet)
	assert.True(t, cfg.DisableIndex)
	assert.True(t, cfg.S3.Enabled())
}
