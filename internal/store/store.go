// Package store records finished matches reported through the relay.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

var ErrClosed = errors.New("store closed")

// Result is one finished match.
type Result struct {
	gorm.Model
	GameID     string    `gorm:"type:varchar(6);index;not null" json:"gameId"`
	BlueScore  int       `json:"blueScore"`
	RedScore   int       `json:"redScore"`
	Winner     string    `gorm:"type:varchar(8)" json:"winner"`
	Message    string    `gorm:"type:varchar(64)" json:"message"`
	FinishedAt time.Time `gorm:"index" json:"finishedAt"`
}

type Recorder interface {
	Record(ctx context.Context, r Result) error
}

type Store interface {
	Recorder
	// Recent lists the latest results, newest first.
	Recent(ctx context.Context, limit int) ([]Result, error)
	Close() error
}

// ClampLimit maps a requested page size onto [1, MaxLimit], using
// DefaultLimit for anything non-positive.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

type GormStore struct {
	db *gorm.DB
}

// Open connects to postgres and migrates the results table.
func Open(dsn string) (*GormStore, error) {
	s, err := newGorm(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := s.db.AutoMigrate(&Result{}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate results: %w", err)
	}
	return s, nil
}

func newGorm(d gorm.Dialector, cfg *gorm.Config) (*GormStore, error) {
	db, err := gorm.Open(d, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Record(ctx context.Context, r Result) error {
	return s.db.WithContext(ctx).Create(&r).Error
}

func (s *GormStore) Recent(ctx context.Context, limit int) ([]Result, error) {
	var out []Result
	err := s.recentQuery(s.db.WithContext(ctx), limit).Find(&out).Error
	return out, err
}

func (s *GormStore) recentQuery(db *gorm.DB, limit int) *gorm.DB {
	return db.Model(&Result{}).
		Order("finished_at desc").
		Limit(ClampLimit(limit))
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Memory keeps results in process. It backs the server when no database is
// configured, so /results only covers the current run.
type Memory struct {
	mu      sync.Mutex
	results []Result
	nextID  uint
	closed  bool
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Record(_ context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.nextID++
	r.ID = m.nextID
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.UpdatedAt = r.CreatedAt
	m.results = append(m.results, r)
	return nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	limit = ClampLimit(limit)
	out := make([]Result, 0, min(limit, len(m.results)))
	for i := len(m.results) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.results[i])
	}
	return out, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
