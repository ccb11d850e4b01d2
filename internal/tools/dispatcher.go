// Package tools exposes the booking operations to the model as a closed set of
// callable functions.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/suPer8Hu/hotel-concierge/internal/ai"
	"github.com/suPer8Hu/hotel-concierge/internal/apperr"
	"github.com/suPer8Hu/hotel-concierge/internal/booking"
	"go.uber.org/zap"
)

// BookingStore is the part of the booking service the tools need.
type BookingStore interface {
	FindByNumber(ctx context.Context, number string) (*booking.Booking, error)
	Cancel(ctx context.Context, number, firstName, lastName string) error
	ChangeRoomType(ctx context.Context, number, firstName, lastName, roomType string) error
}

// Result is the outcome of one tool call. Payload is the JSON handed back to
// the model.
type Result struct {
	CallID  string
	Name    string
	OK      bool
	Payload json.RawMessage
}

// Message wraps the result as a tool message for the next model round.
func (r Result) Message() ai.Message {
	return ai.Message{
		Role:       ai.RoleTool,
		Content:    string(r.Payload),
		ToolCallID: r.CallID,
		Name:       r.Name,
	}
}

type payload struct {
	OK    bool          `json:"ok"`
	Data  any           `json:"data,omitempty"`
	Error *payloadError `json:"error,omitempty"`
}

type payloadError struct {
	Code    apperr.Kind `json:"code"`
	Message string      `json:"message"`
}

type handler func(ctx context.Context, raw json.RawMessage) (any, error)

type Dispatcher struct {
	store    BookingStore
	validate *validator.Validate
	handlers map[string]handler
	log      *zap.Logger
}

func NewDispatcher(store BookingStore, log *zap.Logger) (*Dispatcher, error) {
	if store == nil {
		return nil, errors.New("tools: booking store is required")
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		return nil, err
	}

	d := &Dispatcher{store: store, validate: v, log: log}
	d.handlers = map[string]handler{
		FindBooking:           typed(d, d.findBooking),
		CancelBooking:         typed(d, d.cancelBooking),
		ChangeBookingRoomType: typed(d, d.changeRoomType),
	}

	if len(d.handlers) != len(definitions) {
		return nil, fmt.Errorf("tools: %d handlers for %d tool definitions", len(d.handlers), len(definitions))
	}
	for _, t := range definitions {
		if _, ok := d.handlers[t.Name]; !ok {
			return nil, fmt.Errorf("tools: no handler for tool %q", t.Name)
		}
		if !json.Valid(t.Parameters) {
			return nil, fmt.Errorf("tools: invalid parameter schema for %q", t.Name)
		}
	}
	return d, nil
}

// Schema returns the tool definitions offered to the model.
func (d *Dispatcher) Schema() []ai.Tool {
	out := make([]ai.Tool, len(definitions))
	copy(out, definitions)
	return out
}

// Dispatch runs one tool call. Business failures are reported inside the
// result payload so the model can explain them; only internal failures are
// returned as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, call ai.ToolCall) (Result, error) {
	res := Result{CallID: call.ID, Name: call.Name}

	h, ok := d.handlers[call.Name]
	if !ok {
		return d.fail(res, apperr.InvalidArgument("unknown tool %q", call.Name))
	}

	data, err := h(ctx, call.Arguments)
	if err != nil {
		if apperr.IsBusiness(err) {
			d.log.Info("tool call rejected",
				zap.String("tool", call.Name),
				zap.String("kind", string(apperr.KindOf(err))),
				zap.String("reason", apperr.PublicMessage(err)))
			return d.fail(res, err)
		}
		d.log.Error("tool call failed", zap.String("tool", call.Name), zap.Error(err))
		if apperr.KindOf(err) == apperr.KindInternal && !errors.Is(err, apperr.ErrInternal) {
			err = apperr.Internal(err, "tool %s", call.Name)
		}
		return res, err
	}

	res.OK = true
	res.Payload, err = json.Marshal(payload{OK: true, Data: data})
	if err != nil {
		return res, apperr.Internal(err, "encode %s result", call.Name)
	}
	d.log.Debug("tool call done", zap.String("tool", call.Name))
	return res, nil
}

func (d *Dispatcher) fail(res Result, err error) (Result, error) {
	b, mErr := json.Marshal(payload{Error: &payloadError{
		Code:    apperr.KindOf(err),
		Message: apperr.PublicMessage(err),
	}})
	if mErr != nil {
		return res, apperr.Internal(mErr, "encode %s failure", res.Name)
	}
	res.Payload = b
	return res, nil
}

// typed decodes and validates the arguments before calling fn.
func typed[T any](d *Dispatcher, fn func(context.Context, T) (any, error)) handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args T
		if len(raw) == 0 || string(raw) == "null" {
			raw = json.RawMessage("{}")
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, apperr.InvalidArgument("arguments are not a valid JSON object: %v", err)
		}
		if err := d.validate.Struct(args); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				missing := make([]string, 0, len(verrs))
				for _, fe := range verrs {
					missing = append(missing, fe.Field())
				}
				return nil, apperr.InvalidArgument("missing required arguments: %s", strings.Join(missing, ", "))
			}
			return nil, apperr.Internal(err, "validate arguments")
		}
		return fn(ctx, args)
	}
}

type statusData struct {
	BookingNumber string         `json:"bookingNumber"`
	Status        booking.Status `json:"bookingStatus,omitempty"`
	RoomType      string         `json:"roomType,omitempty"`
}

func (d *Dispatcher) findBooking(ctx context.Context, args findBookingArgs) (any, error) {
	b, err := d.store.FindByNumber(ctx, args.BookingNumber)
	if err != nil {
		return nil, err
	}
	return booking.ToDetail(b), nil
}

func (d *Dispatcher) cancelBooking(ctx context.Context, args cancelBookingArgs) (any, error) {
	if err := d.store.Cancel(ctx, args.BookingNumber, args.FirstName, args.LastName); err != nil {
		return nil, err
	}
	return statusData{BookingNumber: strings.TrimSpace(args.BookingNumber), Status: booking.StatusCancelled}, nil
}

func (d *Dispatcher) changeRoomType(ctx context.Context, args changeRoomTypeArgs) (any, error) {
	if err := d.store.ChangeRoomType(ctx, args.BookingNumber, args.FirstName, args.LastName, args.RoomType); err != nil {
		return nil, err
	}
	return statusData{
		BookingNumber: strings.TrimSpace(args.BookingNumber),
		RoomType:      strings.ToUpper(strings.TrimSpace(args.RoomType)),
	}, nil
}
