package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/suPer8Hu/hotel-concierge/internal/ai"
	"github.com/suPer8Hu/hotel-concierge/internal/apperr"
	"github.com/suPer8Hu/hotel-concierge/internal/booking"
	"github.com/suPer8Hu/hotel-concierge/internal/db"
	"github.com/suPer8Hu/hotel-concierge/internal/logging"
)

func newDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.Connect("sqlite", "file:"+name+"?mode=memory&cache=shared", logging.Nop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	sqlDB, _ := gdb.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.Migrate(gdb, &booking.Customer{}, &booking.Booking{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc := booking.NewService(booking.NewRepo(gdb), nil, logging.Nop())
	if _, err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	d, err := NewDispatcher(svc, logging.Nop())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d
}

type decoded struct {
	OK    bool                       `json:"ok"`
	Data  map[string]json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func dispatch(t *testing.T, d *Dispatcher, name, args string) decoded {
	t.Helper()
	res, err := d.Dispatch(context.Background(), ai.ToolCall{ID: "call_1", Name: name, Arguments: json.RawMessage(args)})
	if err != nil {
		t.Fatalf("dispatch %s: %v", name, err)
	}
	if res.CallID != "call_1" || res.Name != name {
		t.Fatalf("result lost call identity: %+v", res)
	}
	var out decoded
	if err := json.Unmarshal(res.Payload, &out); err != nil {
		t.Fatalf("payload is not JSON: %s", res.Payload)
	}
	if out.OK != res.OK {
		t.Fatalf("payload ok=%v but result ok=%v", out.OK, res.OK)
	}
	return out
}

func field(t *testing.T, d decoded, key string) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(d.Data[key], &s); err != nil {
		t.Fatalf("data.%s: %v", key, err)
	}
	return s
}

func TestSchemaMatchesHandlers(t *testing.T) {
	d := newDispatcher(t)
	schema := d.Schema()
	if len(schema) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(schema))
	}
	for _, tool := range schema {
		if tool.Description == "" {
			t.Fatalf("tool %s has no description", tool.Name)
		}
		var params map[string]any
		if err := json.Unmarshal(tool.Parameters, &params); err != nil {
			t.Fatalf("tool %s has invalid schema: %v", tool.Name, err)
		}
		if _, ok := d.handlers[tool.Name]; !ok {
			t.Fatalf("tool %s has no handler", tool.Name)
		}
	}
}

func TestFindBooking(t *testing.T) {
	d := newDispatcher(t)

	out := dispatch(t, d, FindBooking, `{"bookingNumber":" 101 "}`)
	if !out.OK {
		t.Fatalf("expected ok, got %+v", out.Error)
	}
	if field(t, out, "firstName") != "Jack" || field(t, out, "bookingStatus") != "CONFIRMED" {
		t.Fatalf("unexpected booking %v", out.Data)
	}
}

func TestCancelThenFindShowsCancelled(t *testing.T) {
	d := newDispatcher(t)

	out := dispatch(t, d, CancelBooking, `{"bookingNumber":"101","firstName":"jack","lastName":"BAUER"}`)
	if !out.OK {
		t.Fatalf("cancel failed: %+v", out.Error)
	}
	out = dispatch(t, d, FindBooking, `{"bookingNumber":"101"}`)
	if field(t, out, "bookingStatus") != "CANCELLED" {
		t.Fatalf("expected CANCELLED, got %v", out.Data)
	}

	// second cancel is a no-op success
	out = dispatch(t, d, CancelBooking, `{"bookingNumber":"101","firstName":"Jack","lastName":"Bauer"}`)
	if !out.OK {
		t.Fatalf("repeated cancel should succeed: %+v", out.Error)
	}

	out = dispatch(t, d, ChangeBookingRoomType, `{"bookingNumber":"101","firstName":"Jack","lastName":"Bauer","roomType":"SUITE"}`)
	if out.OK || out.Error.Code != string(apperr.KindInvalidState) {
		t.Fatalf("expected INVALID_STATE for cancelled booking, got %+v", out)
	}
}

func TestChangeRoomType(t *testing.T) {
	d := newDispatcher(t)

	out := dispatch(t, d, ChangeBookingRoomType, `{"bookingNumber":"101","firstName":"Jack","lastName":"Bauer","roomType":"Suite"}`)
	if !out.OK {
		t.Fatalf("change failed: %+v", out.Error)
	}
	out = dispatch(t, d, FindBooking, `{"bookingNumber":"101"}`)
	if field(t, out, "roomType") != "SUITE" {
		t.Fatalf("expected SUITE, got %v", out.Data)
	}

	out = dispatch(t, d, ChangeBookingRoomType, `{"bookingNumber":"101","firstName":"Jack","lastName":"Bauer","roomType":"Penthouse"}`)
	if out.OK || out.Error.Code != string(apperr.KindInvalidArgument) {
		t.Fatalf("expected INVALID_ARGUMENT, got %+v", out)
	}
}

func TestBusinessFailuresStayInPayload(t *testing.T) {
	d := newDispatcher(t)

	cases := []struct {
		name string
		tool string
		args string
		code apperr.Kind
	}{
		{"unknown booking", FindBooking, `{"bookingNumber":"999"}`, apperr.KindNotFound},
		{"wrong owner", CancelBooking, `{"bookingNumber":"101","firstName":"Kim","lastName":"Bauer"}`, apperr.KindNotFound},
		{"missing names", CancelBooking, `{"bookingNumber":"101"}`, apperr.KindInvalidArgument},
		{"blank number", FindBooking, `{"bookingNumber":"   "}`, apperr.KindInvalidArgument},
		{"malformed json", FindBooking, `{"bookingNumber":`, apperr.KindInvalidArgument},
		{"unknown tool", "deleteHotel", `{}`, apperr.KindInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := dispatch(t, d, tc.tool, tc.args)
			if out.OK || out.Error == nil {
				t.Fatalf("expected failure payload, got %+v", out)
			}
			if out.Error.Code != string(tc.code) {
				t.Fatalf("expected %s, got %s (%s)", tc.code, out.Error.Code, out.Error.Message)
			}
			if out.Error.Message == "" {
				t.Fatalf("failure payload needs a message")
			}
		})
	}
}

func TestMissingArgumentsNamesFields(t *testing.T) {
	d := newDispatcher(t)
	out := dispatch(t, d, ChangeBookingRoomType, `{"bookingNumber":"101","firstName":"Jack"}`)
	if out.OK {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(out.Error.Message, "lastName") || !strings.Contains(out.Error.Message, "roomType") {
		t.Fatalf("expected missing field names, got %q", out.Error.Message)
	}
}

type brokenStore struct{}

func (brokenStore) FindByNumber(context.Context, string) (*booking.Booking, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) Cancel(context.Context, string, string, string) error { return nil }

func (brokenStore) ChangeRoomType(context.Context, string, string, string, string) error { return nil }

func TestInternalFailureIsReturnedAsError(t *testing.T) {
	d, err := NewDispatcher(brokenStore{}, logging.Nop())
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	res, err := d.Dispatch(context.Background(), ai.ToolCall{ID: "c", Name: FindBooking, Arguments: json.RawMessage(`{"bookingNumber":"101"}`)})
	if !errors.Is(err, apperr.ErrInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if len(res.Payload) != 0 {
		t.Fatalf("internal failures must not produce a payload, got %s", res.Payload)
	}
}

func TestResultMessage(t *testing.T) {
	r := Result{CallID: "call_7", Name: FindBooking, Payload: json.RawMessage(`{"ok":true}`)}
	m := r.Message()
	if m.Role != ai.RoleTool || m.ToolCallID != "call_7" || m.Name != FindBooking || m.Content != `{"ok":true}` {
		t.Fatalf("unexpected message %+v", m)
	}
}
