package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ahmetcoskunkizilkaya/reportbot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps reports in a SQL table. Mutations take an in-process lock
// and, where the dialect supports it, a row lock inside a transaction.
type GormStore struct {
	db *gorm.DB
	mu sync.Mutex
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&models.Report{}); err != nil {
		return nil, fmt.Errorf("migrate reports: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) LoadAll(ctx context.Context) ([]models.Report, error) {
	var reports []models.Report
	if err := s.db.WithContext(ctx).Order("report_id ASC").Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}
	return reports, nil
}

func (s *GormStore) Get(ctx context.Context, id int64) (models.Report, error) {
	var r models.Report
	if err := s.db.WithContext(ctx).First(&r, "report_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Report{}, ErrNotFound
		}
		return models.Report{}, fmt.Errorf("get report %d: %w", id, err)
	}
	return r, nil
}

func (s *GormStore) Append(ctx context.Context, report models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Report{}).Where("report_id = ?", report.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("check report id: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %d", ErrDuplicateID, report.ID)
		}
		if err := tx.Create(&report).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %d", ErrDuplicateID, report.ID)
			}
			return fmt.Errorf("create report: %w", err)
		}
		return nil
	})
}

func (s *GormStore) Update(ctx context.Context, id int64, mutate MutateFunc) (models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated models.Report
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		// SQLite has no row-level locks; the mutex above is enough there.
		if tx.Dialector.Name() != "sqlite" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var r models.Report
		if err := query.First(&r, "report_id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load report %d: %w", id, err)
		}
		if err := mutate(&r); err != nil {
			return err
		}
		r.ID = id
		if err := tx.Save(&r).Error; err != nil {
			return fmt.Errorf("save report %d: %w", id, err)
		}
		updated = r
		return nil
	})
	if err != nil {
		return models.Report{}, err
	}
	return updated, nil
}

func (s *GormStore) NextID(ctx context.Context) (int64, error) {
	var max int64
	if err := s.db.WithContext(ctx).Model(&models.Report{}).Select("COALESCE(MAX(report_id), 0)").Scan(&max).Error; err != nil {
		return 0, fmt.Errorf("max report id: %w", err)
	}
	return max + 1, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
