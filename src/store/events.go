package store

import (
	"context"

	"tix/src/models"
	"tix/src/types"
)

func (s *GormStore) GetEvent(ctx context.Context, id uint) (*models.Event, error) {
	var event models.Event
	if err := s.db.WithContext(ctx).
		Where(&models.Event{ID: id}).
		First(&event).
		Error; err != nil {
		return nil, wrap(err, "event %d not found", id)
	}
	return &event, nil
}

func (s *GormStore) GetOrganizer(ctx context.Context, id uint) (*models.Organizer, error) {
	var organizer models.Organizer
	if err := s.db.WithContext(ctx).
		Where(&models.Organizer{ID: id}).
		First(&organizer).
		Error; err != nil {
		return nil, wrap(err, "organizer %d not found", id)
	}
	return &organizer, nil
}

func (s *GormStore) CountEventSold(ctx context.Context, eventID uint) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where(&models.Ticket{EventID: eventID, Status: types.TICKET_SOLD}).
		Count(&n).
		Error; err != nil {
		return 0, types.Dependency(err, "error counting sold tickets for event %d", eventID)
	}
	return n, nil
}
