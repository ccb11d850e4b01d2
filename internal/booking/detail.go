package booking

import "time"

const dateLayout = "2006-01-02"

// Detail is the flattened booking record served to the UI and to the model.
type Detail struct {
	BookingNumber  string   `json:"bookingNumber,omitempty"`
	FirstName      string   `json:"firstName,omitempty"`
	LastName       string   `json:"lastName,omitempty"`
	CheckInDate    string   `json:"checkInDate,omitempty"`
	CheckOutDate   string   `json:"checkOutDate,omitempty"`
	BookingStatus  Status   `json:"bookingStatus,omitempty"`
	HotelName      string   `json:"hotelName,omitempty"`
	RoomType       RoomType `json:"roomType,omitempty"`
	NumberOfGuests int      `json:"numberOfGuests,omitempty"`
}

func ToDetail(b *Booking) Detail {
	return Detail{
		BookingNumber:  b.BookingNumber,
		FirstName:      b.Customer.FirstName,
		LastName:       b.Customer.LastName,
		CheckInDate:    formatDate(b.CheckInDate),
		CheckOutDate:   formatDate(b.CheckOutDate),
		BookingStatus:  b.Status,
		HotelName:      b.HotelName,
		RoomType:       b.RoomType,
		NumberOfGuests: b.NumberOfGuests,
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
