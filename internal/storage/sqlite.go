// Package storage keeps an index of finished runs and their per-file
// results in SQLite, so the best files can be found across runs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/dolphain/pkg/models"
)

const DefaultDBFile = "dolphain.sqlite3"
const errDBClientNil = "db client is nil"

// ErrRunNotFound is returned when a run ID is not in the index.
var ErrRunNotFound = errors.New("run not found")

type DBClient struct {
	DB *gorm.DB
}

type Run struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	Mode       string `gorm:"index:idx_run_mode"`
	Seed       int64
	OutputDir  string
	NFiles     int
	NErrors    int
	StartedAt  time.Time `gorm:"index:idx_run_started"`
	FinishedAt time.Time
	CreatedAt  time.Time
}

type FileRecord struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	RunID        string `gorm:"type:varchar(36);uniqueIndex:idx_run_path,priority:1"`
	Path         string `gorm:"uniqueIndex:idx_run_path,priority:2;index:idx_path"`
	Filename     string
	Score        float64 `gorm:"index:idx_score"`
	NChirps      int
	NClickTrains int
	TotalClicks  int
	MaxSweepHz   float64
	SNRDB        float64
	Error        string
}

// NewDBClient opens (or creates) the index at dbPath. An empty path means
// DefaultDBFile in the working directory.
func NewDBClient(dbPath string) (*DBClient, error) {
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// one writer at a time
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Run{}, &FileRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IndexRun stores a run and its results, replacing any earlier index of the
// same run ID.
func (c *DBClient) IndexRun(ctx context.Context, info models.RunInfo, results []models.FileResult) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}

	run := Run{
		ID:         info.ID,
		Mode:       info.Mode,
		Seed:       int64(info.Seed),
		OutputDir:  info.OutputDir,
		NFiles:     info.NFiles,
		NErrors:    info.NErrors,
		StartedAt:  info.StartedAt,
		FinishedAt: info.FinishedAt,
	}

	records := make([]FileRecord, 0, len(results))
	for _, r := range results {
		rec := FileRecord{
			RunID:        info.ID,
			Path:         r.Path,
			Filename:     r.Filename,
			Score:        r.Score,
			NChirps:      len(r.Features.Chirps),
			NClickTrains: len(r.Features.ClickTrains),
			TotalClicks:  r.Features.TotalClicks(),
			MaxSweepHz:   r.Features.MaxSweepHz(),
			SNRDB:        r.Features.SNRDB,
		}
		if r.Error != nil {
			rec.Error = *r.Error
		}
		records = append(records, rec)
	}

	return c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&run).Error; err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		if err := tx.Where("run_id = ?", info.ID).Delete(&FileRecord{}).Error; err != nil {
			return fmt.Errorf("clearing old results: %w", err)
		}
		if len(records) > 0 {
			if err := tx.CreateInBatches(records, 500).Error; err != nil {
				return fmt.Errorf("batch insert results: %w", err)
			}
		}
		return nil
	})
}

// TopFiles returns the best-scoring successful files across all runs, each
// path once at its best score. An empty mode matches every run.
func (c *DBClient) TopFiles(ctx context.Context, limit int, mode string) ([]models.IndexedFile, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	q := c.DB.WithContext(ctx).
		Model(&FileRecord{}).
		Where("file_records.error = ?", "")
	if mode != "" {
		q = q.Joins("JOIN runs ON runs.id = file_records.run_id").Where("runs.mode = ?", mode)
	}

	var rows []FileRecord
	if err := q.Order("file_records.score DESC").Order("file_records.path ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying top files: %w", err)
	}

	seen := make(map[string]struct{})
	var out []models.IndexedFile
	for _, r := range rows {
		if limit > 0 && len(out) == limit {
			break
		}
		if _, ok := seen[r.Path]; ok {
			continue
		}
		seen[r.Path] = struct{}{}
		out = append(out, indexedFile(r))
	}
	return out, nil
}

// RunFiles returns the indexed results of one run, best first.
func (c *DBClient) RunFiles(ctx context.Context, runID string) ([]models.IndexedFile, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []FileRecord
	err := c.DB.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("score DESC").Order("path ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying run files: %w", err)
	}
	out := make([]models.IndexedFile, 0, len(rows))
	for _, r := range rows {
		out = append(out, indexedFile(r))
	}
	return out, nil
}

// ListRuns returns every indexed run, newest first.
func (c *DBClient) ListRuns(ctx context.Context) ([]models.RunInfo, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var runs []Run
	if err := c.DB.WithContext(ctx).Order("started_at DESC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	out := make([]models.RunInfo, 0, len(runs))
	for _, r := range runs {
		out = append(out, runInfo(r))
	}
	return out, nil
}

// GetRun returns one indexed run, or ErrRunNotFound.
func (c *DBClient) GetRun(ctx context.Context, runID string) (models.RunInfo, error) {
	if c == nil || c.DB == nil {
		return models.RunInfo{}, errors.New(errDBClientNil)
	}
	var run Run
	err := c.DB.WithContext(ctx).Where("id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RunInfo{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return models.RunInfo{}, fmt.Errorf("querying run: %w", err)
	}
	return runInfo(run), nil
}

// DeleteRun removes a run and its file records.
func (c *DBClient) DeleteRun(ctx context.Context, runID string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&FileRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", runID).Delete(&Run{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil
	})
}

func indexedFile(r FileRecord) models.IndexedFile {
	return models.IndexedFile{
		RunID:        r.RunID,
		Path:         r.Path,
		Filename:     r.Filename,
		Score:        r.Score,
		NChirps:      r.NChirps,
		NClickTrains: r.NClickTrains,
		TotalClicks:  r.TotalClicks,
		MaxSweepHz:   r.MaxSweepHz,
		SNRDB:        r.SNRDB,
		Error:        r.Error,
	}
}

func runInfo(r Run) models.RunInfo {
	return models.RunInfo{
		ID:         r.ID,
		Mode:       r.Mode,
		Seed:       uint64(r.Seed),
		OutputDir:  r.OutputDir,
		NFiles:     r.NFiles,
		NErrors:    r.NErrors,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}
