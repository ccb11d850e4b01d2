package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/hotel-concierge/internal/apperr"
	"github.com/suPer8Hu/hotel-concierge/internal/booking"
	"github.com/suPer8Hu/hotel-concierge/internal/common"
)

const maxPageSize = 100

// ListBookings returns every booking unless page or page_size is given.
func (h *Handler) ListBookings(c *gin.Context) {
	if c.Query("page") == "" && c.Query("page_size") == "" {
		items, total, err := h.Bookings.List(c.Request.Context(), booking.Page{})
		if err != nil {
			h.fail(c, err)
			return
		}
		common.OK(c, gin.H{"bookings": items, "total": total})
		return
	}

	page, err := queryInt(c, "page", 1)
	if err != nil || page < 1 {
		h.fail(c, apperr.InvalidArgument("page must be a positive integer"))
		return
	}
	size, err := queryInt(c, "page_size", 20)
	if err != nil || size < 1 || size > maxPageSize {
		h.fail(c, apperr.InvalidArgument("page_size must be between 1 and %d", maxPageSize))
		return
	}

	items, total, err := h.Bookings.List(c.Request.Context(), booking.Page{Number: page, Size: size})
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"bookings": items, "total": total, "page": page, "page_size": size})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (h *Handler) GetBooking(c *gin.Context) {
	b, err := h.Bookings.FindByNumber(c.Request.Context(), c.Param("booking_number"))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, booking.ToDetail(b))
}

type guestReq struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

func (h *Handler) CancelBooking(c *gin.Context) {
	var req guestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.InvalidArgument("first_name and last_name are required"))
		return
	}
	number := c.Param("booking_number")
	ctx := c.Request.Context()
	if err := h.Bookings.Cancel(ctx, number, req.FirstName, req.LastName); err != nil {
		h.fail(c, err)
		return
	}
	h.respondBooking(c, number)
}

type changeRoomTypeReq struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	RoomType  string `json:"room_type" binding:"required"`
}

func (h *Handler) ChangeRoomType(c *gin.Context) {
	var req changeRoomTypeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.InvalidArgument("first_name, last_name and room_type are required"))
		return
	}
	number := c.Param("booking_number")
	if err := h.Bookings.ChangeRoomType(c.Request.Context(), number, req.FirstName, req.LastName, req.RoomType); err != nil {
		h.fail(c, err)
		return
	}
	h.respondBooking(c, number)
}

func (h *Handler) respondBooking(c *gin.Context, number string) {
	b, err := h.Bookings.FindByNumber(c.Request.Context(), number)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, booking.ToDetail(b))
}
