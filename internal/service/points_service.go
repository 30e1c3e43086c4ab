package service

import (
	"context"

	"petmaster/internal/model"
	"petmaster/internal/repository"

	"gorm.io/gorm"
)

// PointsService 积分查询服务，发放逻辑在结算引擎内
type PointsService struct {
	pointsRepo *repository.PointsRepository
}

func NewPointsService(db *gorm.DB) *PointsService {
	return &PointsService{
		pointsRepo: repository.NewPointsRepository(db),
	}
}

func (s *PointsService) ListUserRecords(ctx context.Context, userID int64, page, pageSize int) ([]*model.PointRecord, int64, error) {
	return s.pointsRepo.ListByUserID(ctx, userID, page, pageSize)
}
