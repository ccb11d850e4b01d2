package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/hotel-concierge/internal/apperr"
)

type RoomType string

const (
	RoomSingle RoomType = "SINGLE"
	RoomDouble RoomType = "DOUBLE"
	RoomDeluxe RoomType = "DELUXE"
	RoomSuite  RoomType = "SUITE"
)

// RoomTypes lists the offered room types in display order.
var RoomTypes = []RoomType{RoomSingle, RoomDouble, RoomDeluxe, RoomSuite}

// ParseRoomType accepts any casing of an offered room type.
func ParseRoomType(s string) (RoomType, error) {
	rt := RoomType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range RoomTypes {
		if rt == known {
			return rt, nil
		}
	}
	return "", apperr.InvalidArgument("room type %q is not offered, choose one of %s", s, roomTypeList())
}

func roomTypeList() string {
	names := make([]string, 0, len(RoomTypes))
	for _, rt := range RoomTypes {
		names = append(names, string(rt))
	}
	return strings.Join(names, ", ")
}

type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

type Customer struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	FirstName string    `gorm:"type:varchar(64);not null"`
	LastName  string    `gorm:"type:varchar(64);not null"`
	Bookings  []Booking `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Customer) TableName() string { return "customers" }

type Booking struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	BookingNumber  string    `gorm:"type:varchar(32);uniqueIndex;not null"`
	CheckInDate    time.Time `gorm:"not null"`
	CheckOutDate   time.Time `gorm:"not null"`
	NumberOfGuests int       `gorm:"not null"`
	RoomType       RoomType  `gorm:"type:varchar(16);not null"`
	Status         Status    `gorm:"type:varchar(16);index;not null"`
	HotelName      string    `gorm:"type:varchar(128);not null"`
	CustomerID     uint64    `gorm:"index;not null"`
	Customer       Customer  `gorm:"foreignKey:CustomerID"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Booking) TableName() string { return "bookings" }

// Validate checks the invariants a booking must satisfy when it is created.
func (b *Booking) Validate() error {
	if strings.TrimSpace(b.BookingNumber) == "" {
		return apperr.InvalidArgument("booking number is required")
	}
	if !b.CheckInDate.Before(b.CheckOutDate) {
		return apperr.InvalidArgument("check-in must be before check-out")
	}
	if b.NumberOfGuests <= 0 {
		return apperr.InvalidArgument("number of guests must be positive")
	}
	if _, err := ParseRoomType(string(b.RoomType)); err != nil {
		return err
	}
	if b.Status != StatusConfirmed && b.Status != StatusCancelled {
		return apperr.InvalidArgument("unknown booking status %q", b.Status)
	}
	return nil
}

// Event is emitted after a booking mutation has been committed.
type Event struct {
	Type          string    `json:"type"`
	BookingNumber string    `json:"booking_number"`
	Status        Status    `json:"status"`
	RoomType      RoomType  `json:"room_type"`
	HotelName     string    `json:"hotel_name"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	OccurredAt    time.Time `json:"occurred_at"`
}

const (
	EventCancelled       = "booking.cancelled"
	EventRoomTypeChanged = "booking.room_type_changed"
)

// Notice renders the guest notification for ev.
func (ev Event) Notice() (string, error) {
	if strings.TrimSpace(ev.BookingNumber) == "" {
		return "", apperr.InvalidArgument("event without booking number")
	}
	guest := strings.TrimSpace(ev.FirstName + " " + ev.LastName)
	switch ev.Type {
	case EventCancelled:
		return fmt.Sprintf("Dear %s, your booking %s at %s has been cancelled.", guest, ev.BookingNumber, ev.HotelName), nil
	case EventRoomTypeChanged:
		return fmt.Sprintf("Dear %s, your booking %s at %s now has a %s room.", guest, ev.BookingNumber, ev.HotelName, ev.RoomType), nil
	default:
		return "", apperr.InvalidArgument("unknown booking event type %q", ev.Type)
	}
}
