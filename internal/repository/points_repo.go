package repository

import (
	"context"
	"errors"

	"petmaster/internal/model"

	"gorm.io/gorm"
)

type PointsRepository struct {
	db *gorm.DB
}

func NewPointsRepository(db *gorm.DB) *PointsRepository {
	return &PointsRepository{db: db}
}

func (r *PointsRepository) Create(ctx context.Context, tx *gorm.DB, record *model.PointRecord) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(record).Error
}

func (r *PointsRepository) GetByOrderNo(ctx context.Context, orderNo string) (*model.PointRecord, error) {
	var record model.PointRecord
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *PointsRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.PointRecord, int64, error) {
	var records []*model.PointRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&model.PointRecord{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error

	return records, total, err
}
