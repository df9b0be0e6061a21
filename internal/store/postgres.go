package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/platinummonkey/regionscan/internal/model"
)

// runRecord is the relational row of a run. The aggregate itself is kept as
// JSON in Payload; the other columns serve listing and filtering.
type runRecord struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Source       string    `gorm:"size:1024"`
	Status       string    `gorm:"size:16;index"`
	DocumentType string    `gorm:"size:32;index"`
	Regions      int
	Failed       int
	MeanQuality  float64
	StartedAt    time.Time `gorm:"index"`
	FinishedAt   time.Time
	SavedAt      time.Time
	Payload      string `gorm:"type:text"`
}

// TableName sets the table used for runs
func (runRecord) TableName() string {
	return "regionscan_runs"
}

func toRecord(run *Run) (*runRecord, error) {
	payload, err := encodeDocument(run.Document)
	if err != nil {
		return nil, err
	}
	s := run.Summary()
	return &runRecord{
		ID:           run.ID,
		Source:       run.Source,
		Status:       string(s.Status),
		DocumentType: string(s.DocumentType),
		Regions:      s.Regions,
		Failed:       s.Failed,
		MeanQuality:  s.MeanQuality,
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
		SavedAt:      run.SavedAt,
		Payload:      payload,
	}, nil
}

func (r *runRecord) summary() RunSummary {
	return RunSummary{
		ID:           r.ID,
		Source:       r.Source,
		Status:       model.RunStatus(r.Status),
		DocumentType: model.DocumentType(r.DocumentType),
		Regions:      r.Regions,
		Failed:       r.Failed,
		MeanQuality:  r.MeanQuality,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
}

// SQLStore keeps runs in a relational database through gorm
type SQLStore struct {
	db *gorm.DB
}

// OpenPostgres connects to PostgreSQL and migrates the runs table
func OpenPostgres(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewSQLStore(db)
}

// NewSQLStore wraps an open gorm connection and migrates the runs table
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&runRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate runs table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Save inserts or replaces a run
func (s *SQLStore) Save(ctx context.Context, run *Run) error {
	if err := run.validate(); err != nil {
		return err
	}
	rec, err := toRecord(run)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// Get loads a run by ID
func (s *SQLStore) Get(ctx context.Context, id string) (*Run, error) {
	var rec runRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	doc, err := decodeDocument(rec.Payload)
	if err != nil {
		return nil, err
	}
	return &Run{ID: rec.ID, Source: rec.Source, SavedAt: rec.SavedAt, Document: doc}, nil
}

// List returns run summaries, most recent first, without loading payloads
func (s *SQLStore) List(ctx context.Context) ([]RunSummary, error) {
	var recs []runRecord
	err := s.db.WithContext(ctx).
		Omit("payload").
		Order("started_at desc, id").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	out := make([]RunSummary, len(recs))
	for i := range recs {
		out[i] = recs[i].summary()
	}
	return out, nil
}

// Delete removes a run
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&runRecord{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database connection pool
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
