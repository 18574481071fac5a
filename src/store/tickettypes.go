package store

import (
	"context"

	"tix/src/models"
	"tix/src/types"

	"gorm.io/gorm"
)

func (s *GormStore) CreateTicketType(ctx context.Context, tt *models.TicketType) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := tx.Where(&models.Event{ID: tt.EventID}).First(&event).Error; err != nil {
			return wrap(err, "event %d not found", tt.EventID)
		}
		if err := tx.Create(tt).Error; err != nil {
			return types.Dependency(err, "error creating ticket type")
		}
		return nil
	})
	return err
}

func (s *GormStore) GetTicketType(ctx context.Context, id uint) (*models.TicketType, error) {
	var tt models.TicketType
	if err := s.db.WithContext(ctx).
		Where(&models.TicketType{ID: id}).
		First(&tt).
		Error; err != nil {
		return nil, wrap(err, "ticket type %d not found", id)
	}
	return &tt, nil
}

func (s *GormStore) UpdateTicketType(ctx context.Context, id uint, upd *TicketTypeUpdate) (*models.TicketType, error) {
	var tt models.TicketType
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&models.TicketType{ID: id}).First(&tt).Error; err != nil {
			return wrap(err, "ticket type %d not found", id)
		}
		fields := map[string]any{}
		if upd.Name != nil {
			fields["name"] = *upd.Name
		}
		if upd.Price != nil {
			fields["price"] = *upd.Price
		}
		if upd.MaxPerCustomer != nil {
			fields["max_per_customer"] = *upd.MaxPerCustomer
		}
		if upd.RequireApproval != nil {
			fields["require_approval"] = *upd.RequireApproval
		}
		if upd.SaleStartsAt != nil {
			fields["sale_starts_at"] = *upd.SaleStartsAt
		}
		if upd.SaleEndsAt != nil {
			fields["sale_ends_at"] = *upd.SaleEndsAt
		}
		if len(fields) == 0 {
			return nil
		}
		if err := tx.
			Model(&models.TicketType{}).
			Where(&models.TicketType{ID: id}).
			Updates(fields).
			Error; err != nil {
			return types.Dependency(err, "error updating ticket type %d", id)
		}
		if err := tx.Where(&models.TicketType{ID: id}).First(&tt).Error; err != nil {
			return wrap(err, "ticket type %d not found", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tt, nil
}

func (s *GormStore) DeleteTicketType(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tt models.TicketType
		if err := tx.Where(&models.TicketType{ID: id}).First(&tt).Error; err != nil {
			return wrap(err, "ticket type %d not found", id)
		}
		var claimed int64
		if err := tx.
			Model(&models.Ticket{}).
			Where(&models.Ticket{TicketTypeID: id}).
			Count(&claimed).
			Error; err != nil {
			return types.Dependency(err, "error counting tickets for type %d", id)
		}
		if claimed > 0 {
			return types.NewError(types.CodeInvalidStatus, "ticket type %d has claimed inventory and cannot be deleted", id)
		}
		if err := tx.Delete(&tt).Error; err != nil {
			return types.Dependency(err, "error deleting ticket type %d", id)
		}
		return nil
	})
}

func (s *GormStore) ListEventTicketTypes(ctx context.Context, eventID uint) ([]models.TicketType, error) {
	var tts []models.TicketType
	if err := s.db.WithContext(ctx).
		Where(&models.TicketType{EventID: eventID}).
		Order("created_at desc").
		Find(&tts).
		Error; err != nil {
		return nil, types.Dependency(err, "error listing ticket types for event %d", eventID)
	}
	return tts, nil
}
