package verification

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/storefront/internal/models"
)

// DBStore keeps codes in the verification_codes table.
type DBStore struct {
	db *gorm.DB
}

// NewDBStore creates a new DBStore.
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Save(ctx context.Context, email, code string, expiresAt time.Time) error {
	row := &models.VerificationCode{Email: email, Code: code, ExpiresAt: expiresAt}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "expires_at", "attempts", "updated_at"}),
	}).Create(row).Error
}

func (s *DBStore) Get(ctx context.Context, email string) (*Entry, error) {
	var row models.VerificationCode
	err := s.db.WithContext(ctx).First(&row, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Entry{Code: row.Code, ExpiresAt: row.ExpiresAt, Attempts: row.Attempts}, nil
}

func (s *DBStore) IncrementAttempts(ctx context.Context, email string) (int, error) {
	res := s.db.WithContext(ctx).Model(&models.VerificationCode{}).
		Where("email = ?", email).
		Update("attempts", gorm.Expr("attempts + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrCodeNotFound
	}

	var row models.VerificationCode
	if err := s.db.WithContext(ctx).Select("attempts").First(&row, "email = ?", email).Error; err != nil {
		return 0, err
	}
	return row.Attempts, nil
}

func (s *DBStore) Delete(ctx context.Context, email string) error {
	return s.db.WithContext(ctx).Where("email = ?", email).Delete(&models.VerificationCode{}).Error
}

// PurgeExpired removes every code that expired before now.
func (s *DBStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.VerificationCode{})
	return res.RowsAffected, res.Error
}
