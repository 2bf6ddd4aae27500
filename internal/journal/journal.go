// Package journal keeps a persistent record of every operation applied to an
// image, in sqlite by default or postgres when configured
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	gorm_logrus "github.com/onrik/gorm-logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry is one recorded operation
type Entry struct {
	ID         uint      `gorm:"primaryKey"`
	CreatedAt  time.Time `gorm:"index"`
	Page       string    `gorm:"size:32;index"`
	Operation  string    `gorm:"size:64;index"`
	Params     string
	Input      string `gorm:"size:32"`
	Output     string `gorm:"size:32"`
	DurationMS int64
	// PSNR and SSIM are nil when the images could not be compared or PSNR is infinite.
	PSNR   *float64
	SSIM   *float64
	Status string `gorm:"size:16"`
	Error  string
}

// Recorder accepts journal entries. *Store implements it.
type Recorder interface {
	Record(ctx context.Context, e *Entry) error
}

// NewEntry starts an entry for operation on page. Params are stored as JSON.
func NewEntry(page, operation string, params any) *Entry {
	e := &Entry{Page: page, Operation: operation, Status: StatusOK}
	if params != nil {
		if raw, err := json.Marshal(params); err == nil {
			e.Params = string(raw)
		}
	}
	return e
}

// SetMetrics stores finite quality scores.
func (e *Entry) SetMetrics(psnr, ssim float64) {
	if !math.IsInf(psnr, 0) && !math.IsNaN(psnr) {
		e.PSNR = &psnr
	}
	if !math.IsNaN(ssim) {
		e.SSIM = &ssim
	}
}

// Finish sets the duration since start and marks the entry failed when err is set.
func (e *Entry) Finish(start time.Time, err error) {
	e.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		e.Status = StatusFailed
		e.Error = err.Error()
	}
}

// FormatSize renders image dimensions as WxHxC.
func FormatSize(cols, rows, channels int) string {
	return fmt.Sprintf("%dx%dx%d", cols, rows, channels)
}

// PostgresConfig holds postgres connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	UseSSL   bool   `yaml:"use_ssl"`
}

// BuildPostgresDSN turns c into a libpq keyword/value connection string.
func BuildPostgresDSN(c PostgresConfig) string {
	sslmode := "disable"
	if c.UseSSL {
		sslmode = "require"
	}
	port := c.Port
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, port, c.User, c.Password, c.DBName, sslmode)
}

// Config selects the journal backend
type Config struct {
	// Driver is sqlite, postgres or none.
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

func DefaultConfig() Config {
	return Config{Driver: "sqlite", Path: "sona-journal.sqlite"}
}

// ErrDisabled is returned by Open when the driver is none.
var ErrDisabled = errors.New("journal disabled")

// Store is a gorm backed journal
type Store struct {
	db *gorm.DB
}

// Open connects to the configured database and migrates the schema.
func Open(cfg Config) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		if cfg.Path == "" {
			cfg.Path = DefaultConfig().Path
		}
		dialector = sqlite.Open(cfg.Path)
	case "postgres":
		dialector = postgres.Open(BuildPostgresDSN(cfg.Postgres))
	case "none":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown journal driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gorm_logrus.New(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect journal database: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Record(ctx context.Context, e *Entry) error {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("record journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first, optionally for one page.
func (s *Store) Recent(ctx context.Context, limit int, page string) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	q := s.db.WithContext(ctx).Order("id desc").Limit(limit)
	if page != "" {
		q = q.Where("page = ?", page)
	}

	var entries []Entry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	return entries, nil
}

// Stats counts entries per operation.
func (s *Store) Stats(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Operation string
		Count     int64
	}
	err := s.db.WithContext(ctx).Model(&Entry{}).
		Select("operation, count(*) as count").
		Group("operation").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("journal stats: %w", err)
	}

	stats := make(map[string]int64, len(rows))
	for _, r := range rows {
		stats[r.Operation] = r.Count
	}
	return stats, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
