package booking

import (
	"context"
	"time"

	"github.com/suPer8Hu/hotel-concierge/internal/apperr"
)

type seedRow struct {
	number    string
	first     string
	last      string
	hotel     string
	roomType  RoomType
	guests    int
	startDays int
	nights    int
}

var demoBookings = []seedRow{
	{"101", "Jack", "Bauer", "Grand Budapest Hotel", RoomDouble, 2, 2, 3},
	{"102", "Chloe", "O'Brian", "Hotel Cortina", RoomSingle, 1, 4, 2},
	{"103", "Kim", "Bauer", "Seaside Resort Split", RoomSuite, 3, 6, 7},
	{"104", "David", "Palmer", "Alpine Lodge Zermatt", RoomDeluxe, 2, 8, 4},
	{"105", "Michelle", "Dessler", "Harbor View Inn", RoomDouble, 2, 10, 5},
}

// Seed inserts the demo customers and bookings unless bookings already exist.
// It reports how many bookings were inserted.
func (s *Service) Seed(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, apperr.Internal(err, "count bookings")
	}
	if n > 0 {
		return 0, nil
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	inserted := 0
	err = s.repo.Transaction(ctx, func(tx *Repo) error {
		for _, row := range demoBookings {
			checkIn := today.AddDate(0, 0, row.startDays)
			b := Booking{
				BookingNumber:  row.number,
				CheckInDate:    checkIn,
				CheckOutDate:   checkIn.AddDate(0, 0, row.nights),
				NumberOfGuests: row.guests,
				RoomType:       row.roomType,
				Status:         StatusConfirmed,
				HotelName:      row.hotel,
			}
			if err := b.Validate(); err != nil {
				return err
			}
			c := &Customer{FirstName: row.first, LastName: row.last, Bookings: []Booking{b}}
			if err := tx.CreateCustomer(ctx, c); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, s.translate(err, "seed")
	}
	return inserted, nil
}
