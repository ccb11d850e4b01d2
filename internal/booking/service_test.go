package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/hotel-concierge/internal/apperr"
	"github.com/suPer8Hu/hotel-concierge/internal/logging"
	"gorm.io/gorm"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) PublishBookingEvent(ctx context.Context, ev Event) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(gormsqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&Customer{}, &Booking{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newSeededService(t *testing.T) (*Service, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	svc := NewService(NewRepo(openTestDB(t)), sink, logging.Nop())
	n, err := svc.Seed(context.Background())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != len(demoBookings) {
		t.Fatalf("expected %d seeded bookings, got %d", len(demoBookings), n)
	}
	return svc, sink
}

func TestSeedIsOneShot(t *testing.T) {
	svc, _ := newSeededService(t)
	n, err := svc.Seed(context.Background())
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected second seed to insert nothing, got %d", n)
	}
}

func TestFindByNumberAndOwner_CaseInsensitive(t *testing.T) {
	svc, _ := newSeededService(t)
	ctx := context.Background()

	tests := []struct {
		first, last string
		found       bool
	}{
		{"Jack", "Bauer", true},
		{"BAUER", "bauer", false}, // wrong first name
		{"jack", "BAUER", true},
		{"JACK", "bauer", true},
		{"Jack", "Palmer", false},
		{"Kim", "Bauer", false}, // Kim owns 103, not 101
	}
	for _, tt := range tests {
		_, err := svc.FindByNumberAndOwner(ctx, "101", tt.first, tt.last)
		if tt.found && err != nil {
			t.Fatalf("(%s,%s): unexpected error %v", tt.first, tt.last, err)
		}
		if !tt.found && !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("(%s,%s): expected not found, got %v", tt.first, tt.last, err)
		}
	}
}

func TestOwnerMatchIgnoresNameCase(t *testing.T) {
	// A customer literally named Bauer Bauer makes the ("BAUER","bauer") and
	// ("Bauer","BAUER") pairs meaningful.
	svc, _ := newSeededService(t)
	ctx := context.Background()
	c := &Customer{FirstName: "Bauer", LastName: "Bauer", Bookings: []Booking{{
		BookingNumber: "900", NumberOfGuests: 1, RoomType: RoomSingle, Status: StatusConfirmed, HotelName: "H",
	}}}
	c.Bookings[0].CheckInDate = svc.now()
	c.Bookings[0].CheckOutDate = svc.now().AddDate(0, 0, 1)
	if err := svc.repo.CreateCustomer(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, names := range [][2]string{{"BAUER", "bauer"}, {"Bauer", "BAUER"}} {
		if _, err := svc.FindByNumberAndOwner(ctx, "900", names[0], names[1]); err != nil {
			t.Fatalf("%v: expected match, got %v", names, err)
		}
	}
	if _, err := svc.FindByNumberAndOwner(ctx, "900", "Bauer", "Palmer"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFindByNumber(t *testing.T) {
	svc, _ := newSeededService(t)

	b, err := svc.FindByNumber(context.Background(), " 101 ")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if b.Customer.FirstName != "Jack" || b.Status != StatusConfirmed {
		t.Fatalf("unexpected booking %+v", b)
	}

	if _, err := svc.FindByNumber(context.Background(), "999"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	svc, sink := newSeededService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := svc.Cancel(ctx, "101", "Jack", "Bauer"); err != nil {
			t.Fatalf("cancel #%d: %v", i+1, err)
		}
	}

	b, err := svc.FindByNumber(ctx, "101")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if b.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", b.Status)
	}
	if sink.count() != 1 {
		t.Fatalf("expected exactly one event, got %d", sink.count())
	}
	if sink.events[0].Type != EventCancelled || sink.events[0].FirstName != "Jack" {
		t.Fatalf("unexpected event %+v", sink.events[0])
	}
}

func TestCancelRequiresOwner(t *testing.T) {
	svc, sink := newSeededService(t)
	ctx := context.Background()

	if err := svc.Cancel(ctx, "101", "David", "Palmer"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	b, _ := svc.FindByNumber(ctx, "101")
	if b.Status != StatusConfirmed {
		t.Fatalf("booking must stay confirmed, got %s", b.Status)
	}
	if sink.count() != 0 {
		t.Fatalf("expected no events")
	}
}

func TestConcurrentCancelPublishesOnce(t *testing.T) {
	svc, sink := newSeededService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.Cancel(ctx, "104", "david", "palmer")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
	}
	if sink.count() != 1 {
		t.Fatalf("expected one event, got %d", sink.count())
	}
}

func TestChangeRoomType(t *testing.T) {
	svc, sink := newSeededService(t)
	ctx := context.Background()

	if err := svc.ChangeRoomType(ctx, "101", "Jack", "Bauer", "Suite"); err != nil {
		t.Fatalf("change: %v", err)
	}
	b, _ := svc.FindByNumber(ctx, "101")
	if b.RoomType != RoomSuite {
		t.Fatalf("expected SUITE, got %s", b.RoomType)
	}
	if sink.count() != 1 || sink.events[0].Type != EventRoomTypeChanged {
		t.Fatalf("unexpected events %+v", sink.events)
	}

	// same type again changes nothing
	if err := svc.ChangeRoomType(ctx, "101", "Jack", "Bauer", "SUITE"); err != nil {
		t.Fatalf("change again: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("expected no extra event, got %d", sink.count())
	}
}

func TestChangeRoomTypeUnknownTypeLeavesBookingUntouched(t *testing.T) {
	svc, _ := newSeededService(t)
	ctx := context.Background()

	for _, rt := range []string{"PENTHOUSE", "", "suite!", "Single Room"} {
		err := svc.ChangeRoomType(ctx, "101", "Jack", "Bauer", rt)
		if !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Fatalf("%q: expected invalid argument, got %v", rt, err)
		}
	}
	b, _ := svc.FindByNumber(ctx, "101")
	if b.RoomType != RoomDouble {
		t.Fatalf("room type must stay DOUBLE, got %s", b.RoomType)
	}
}

func TestChangeRoomTypeOnCancelledBooking(t *testing.T) {
	svc, _ := newSeededService(t)
	ctx := context.Background()

	if err := svc.Cancel(ctx, "102", "Chloe", "O'Brian"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	for _, rt := range RoomTypes {
		err := svc.ChangeRoomType(ctx, "102", "Chloe", "O'Brian", string(rt))
		if !errors.Is(err, apperr.ErrInvalidState) {
			t.Fatalf("%s: expected invalid state, got %v", rt, err)
		}
	}
}

func TestEventFailureDoesNotFailMutation(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	svc := NewService(NewRepo(openTestDB(t)), sink, logging.Nop())
	if _, err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.Cancel(context.Background(), "105", "Michelle", "Dessler"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
}

func TestListPagination(t *testing.T) {
	svc, _ := newSeededService(t)
	ctx := context.Background()

	all, total, err := svc.List(ctx, Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(all) != 5 {
		t.Fatalf("expected 5 bookings, got total=%d len=%d", total, len(all))
	}
	if all[0].BookingNumber != "101" || all[0].FirstName != "Jack" || all[0].CheckInDate == "" {
		t.Fatalf("unexpected first detail %+v", all[0])
	}

	page, total, err := svc.List(ctx, Page{Number: 2, Size: 2})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if total != 5 || len(page) != 2 || page[0].BookingNumber != "103" {
		t.Fatalf("unexpected page %+v total=%d", page, total)
	}
}
