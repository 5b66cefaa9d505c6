package service

import (
	"context"
	"strconv"

	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/domain/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditService writes audit entries inside the caller's transaction so the
// entry commits or rolls back together with the change it describes.
type AuditService interface {
	LogCreate(ctx context.Context, tx *gorm.DB, actor *entity.CallerIdentity, action, entityName string, entityID int64, newValue interface{}) error
	LogUpdate(ctx context.Context, tx *gorm.DB, actor *entity.CallerIdentity, action, entityName string, entityID int64, oldValue, newValue interface{}) error
	LogDelete(ctx context.Context, tx *gorm.DB, actor *entity.CallerIdentity, action, entityName string, entityID int64, oldValue interface{}) error
}

type auditService struct {
	log       *logrus.Logger
	auditRepo repository.AuditLogRepository
}

func NewAuditService(log *logrus.Logger, auditRepo repository.AuditLogRepository) AuditService {
	return &auditService{
		log:       log,
		auditRepo: auditRepo,
	}
}

func (s *auditService) LogCreate(ctx context.Context, tx *gorm.DB, actor *entity.CallerIdentity, action, entityName string, entityID int64, newValue interface{}) error {
	return s.write(tx, actor, action, entityName, entityID, nil, newValue)
}

func (s *auditService) LogUpdate(ctx context.Context, tx *gorm.DB, actor *entity.CallerIdentity, action, entityName string, entityID int64, oldValue, newValue interface{}) error {
	return s.write(tx, actor, action, entityName, entityID, oldValue, newValue)
}

func (s *auditService) LogDelete(ctx context.Context, tx *gorm.DB, actor *entity.CallerIdentity, action, entityName string, entityID int64, oldValue interface{}) error {
	return s.write(tx, actor, action, entityName, entityID, oldValue, nil)
}

func (s *auditService) write(tx *gorm.DB, actor *entity.CallerIdentity, action, entityName string, entityID int64, oldValue, newValue interface{}) error {
	auditLog := &entity.AuditLog{
		Action: action,
		Metadata: datatypes.JSONMap{
			"entity":    entityName,
			"entity_id": strconv.FormatInt(entityID, 10),
			"old_value": oldValue,
			"new_value": newValue,
		},
	}
	if actor != nil {
		userID := actor.UserID
		auditLog.UserID = &userID
	}

	if err := s.auditRepo.Create(tx, auditLog); err != nil {
		s.log.Warnf("Failed to create audit log: %+v", err)
		return err
	}

	return nil
}
