package tools

import (
	"encoding/json"

	"github.com/suPer8Hu/hotel-concierge/internal/ai"
)

const (
	FindBooking           = "findBooking"
	CancelBooking         = "cancelBooking"
	ChangeBookingRoomType = "changeBookingRoomType"
)

var definitions = []ai.Tool{
	{
		Name:        FindBooking,
		Description: "Get the details of a booking by its booking number.",
		Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "bookingNumber": {"type": "string", "description": "The booking number, for example 101."}
  },
  "required": ["bookingNumber"]
}`),
	},
	{
		Name: CancelBooking,
		Description: "Cancel a booking. Requires the booking number and the first and last name " +
			"of the guest who made it. Cancelling an already cancelled booking changes nothing.",
		Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "bookingNumber": {"type": "string", "description": "The booking number."},
    "firstName": {"type": "string", "description": "First name of the guest on the booking."},
    "lastName": {"type": "string", "description": "Last name of the guest on the booking."}
  },
  "required": ["bookingNumber", "firstName", "lastName"]
}`),
	},
	{
		Name: ChangeBookingRoomType,
		Description: "Change the room type of a confirmed booking. Requires the booking number, " +
			"the first and last name of the guest and the new room type.",
		Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "bookingNumber": {"type": "string", "description": "The booking number."},
    "firstName": {"type": "string", "description": "First name of the guest on the booking."},
    "lastName": {"type": "string", "description": "Last name of the guest on the booking."},
    "roomType": {"type": "string", "enum": ["SINGLE", "DOUBLE", "DELUXE", "SUITE"], "description": "The new room type."}
  },
  "required": ["bookingNumber", "firstName", "lastName", "roomType"]
}`),
	},
}

type findBookingArgs struct {
	BookingNumber string `json:"bookingNumber" validate:"notblank"`
}

type cancelBookingArgs struct {
	BookingNumber string `json:"bookingNumber" validate:"notblank"`
	FirstName     string `json:"firstName" validate:"notblank"`
	LastName      string `json:"lastName" validate:"notblank"`
}

type changeRoomTypeArgs struct {
	BookingNumber string `json:"bookingNumber" validate:"notblank"`
	FirstName     string `json:"firstName" validate:"notblank"`
	LastName      string `json:"lastName" validate:"notblank"`
	RoomType      string `json:"roomType" validate:"notblank"`
}
