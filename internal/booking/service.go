package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/suPer8Hu/hotel-concierge/internal/apperr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventSink receives booking events after their mutation committed.
type EventSink interface {
	PublishBookingEvent(ctx context.Context, ev Event) error
}

type nopSink struct{}

func (nopSink) PublishBookingEvent(context.Context, Event) error { return nil }

type Service struct {
	repo   *Repo
	events EventSink
	log    *zap.Logger
	now    func() time.Time
}

func NewService(repo *Repo, events EventSink, log *zap.Logger) *Service {
	if events == nil {
		events = nopSink{}
	}
	return &Service{repo: repo, events: events, log: log, now: time.Now}
}

// Page selects a window of the booking list. Size 0 means everything.
type Page struct {
	Number int
	Size   int
}

func (s *Service) FindByNumber(ctx context.Context, number string) (*Booking, error) {
	number = strings.TrimSpace(number)
	b, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, s.translate(err, "booking %s not found", number)
	}
	return b, nil
}

func (s *Service) FindByNumberAndOwner(ctx context.Context, number, firstName, lastName string) (*Booking, error) {
	number = strings.TrimSpace(number)
	b, err := s.repo.FindByNumberAndOwner(ctx, number, strings.TrimSpace(firstName), strings.TrimSpace(lastName), false)
	if err != nil {
		return nil, s.translate(err, "booking %s not found for that guest name", number)
	}
	return b, nil
}

// Cancel sets the booking status to CANCELLED. Cancelling an already
// cancelled booking succeeds without changes.
func (s *Service) Cancel(ctx context.Context, number, firstName, lastName string) error {
	number = strings.TrimSpace(number)
	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)

	var (
		updated *Booking
		changed bool
	)
	err := s.repo.Transaction(ctx, func(tx *Repo) error {
		b, err := tx.FindByNumberAndOwner(ctx, number, firstName, lastName, true)
		if err != nil {
			return err
		}
		updated = b
		if b.Status == StatusCancelled {
			return nil
		}
		if err := tx.UpdateStatus(ctx, b.ID, StatusCancelled); err != nil {
			return err
		}
		b.Status = StatusCancelled
		changed = true
		return nil
	})
	if err != nil {
		return s.translate(err, "booking %s not found for that guest name", number)
	}

	if changed {
		s.log.Info("booking cancelled", zap.String("booking_number", number))
		s.publish(ctx, EventCancelled, updated)
	}
	return nil
}

// ChangeRoomType moves the booking to another room type. The type is checked
// before the booking is touched; cancelled bookings cannot change.
func (s *Service) ChangeRoomType(ctx context.Context, number, firstName, lastName, roomType string) error {
	rt, err := ParseRoomType(roomType)
	if err != nil {
		return err
	}
	number = strings.TrimSpace(number)
	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)

	var (
		updated *Booking
		changed bool
	)
	err = s.repo.Transaction(ctx, func(tx *Repo) error {
		b, err := tx.FindByNumberAndOwner(ctx, number, firstName, lastName, true)
		if err != nil {
			return err
		}
		if b.Status == StatusCancelled {
			return apperr.InvalidState("booking %s is cancelled and can no longer be changed", number)
		}
		updated = b
		if b.RoomType == rt {
			return nil
		}
		if err := tx.UpdateRoomType(ctx, b.ID, rt); err != nil {
			return err
		}
		b.RoomType = rt
		changed = true
		return nil
	})
	if err != nil {
		return s.translate(err, "booking %s not found for that guest name", number)
	}

	if changed {
		s.log.Info("booking room type changed",
			zap.String("booking_number", number),
			zap.String("room_type", string(rt)))
		s.publish(ctx, EventRoomTypeChanged, updated)
	}
	return nil
}

func (s *Service) List(ctx context.Context, page Page) ([]Detail, int64, error) {
	offset, limit := 0, 0
	if page.Size > 0 {
		if page.Number < 1 {
			page.Number = 1
		}
		offset, limit = (page.Number-1)*page.Size, page.Size
	}

	rows, total, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, apperr.Internal(err, "list bookings")
	}
	out := make([]Detail, 0, len(rows))
	for i := range rows {
		out = append(out, ToDetail(&rows[i]))
	}
	return out, total, nil
}

func (s *Service) publish(ctx context.Context, typ string, b *Booking) {
	ev := Event{
		Type:          typ,
		BookingNumber: b.BookingNumber,
		Status:        b.Status,
		RoomType:      b.RoomType,
		HotelName:     b.HotelName,
		FirstName:     b.Customer.FirstName,
		LastName:      b.Customer.LastName,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.events.PublishBookingEvent(ctx, ev); err != nil {
		// the mutation is already committed
		s.log.Warn("publish booking event failed",
			zap.String("type", typ),
			zap.String("booking_number", b.BookingNumber),
			zap.Error(err))
	}
}

func (s *Service) translate(err error, notFoundFormat string, args ...any) error {
	var appErr *apperr.Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(notFoundFormat, args...)
	case errors.As(err, &appErr):
		return appErr
	default:
		return apperr.Internal(err, "booking store")
	}
}
