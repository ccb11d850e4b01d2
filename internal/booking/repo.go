package booking

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Transaction runs fn against a repo bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise, including
// on panic.
func (r *Repo) Transaction(ctx context.Context, fn func(tx *Repo) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}

func (r *Repo) FindByNumber(ctx context.Context, number string) (*Booking, error) {
	var b Booking
	if err := r.db.WithContext(ctx).
		Preload("Customer").
		Where("booking_number = ?", number).
		First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// FindByNumberAndOwner matches the booking number exactly and the owner's
// names case-insensitively. forUpdate takes a row lock where the dialect
// supports one.
func (r *Repo) FindByNumberAndOwner(ctx context.Context, number, firstName, lastName string, forUpdate bool) (*Booking, error) {
	owners := r.db.WithContext(ctx).
		Model(&Customer{}).
		Select("id").
		Where("UPPER(first_name) = UPPER(?) AND UPPER(last_name) = UPPER(?)", firstName, lastName)

	q := r.db.WithContext(ctx).
		Preload("Customer").
		Where("booking_number = ?", number).
		Where("customer_id IN (?)", owners)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var b Booking
	if err := q.First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repo) UpdateStatus(ctx context.Context, id uint64, status Status) error {
	return r.db.WithContext(ctx).Model(&Booking{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *Repo) UpdateRoomType(ctx context.Context, id uint64, rt RoomType) error {
	return r.db.WithContext(ctx).Model(&Booking{}).
		Where("id = ?", id).
		Update("room_type", rt).Error
}

// List returns bookings ordered by booking number. limit <= 0 returns all.
func (r *Repo) List(ctx context.Context, offset, limit int) ([]Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&Booking{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := r.db.WithContext(ctx).Preload("Customer").Order("booking_number ASC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}

	var out []Booking
	if err := q.Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// CreateCustomer inserts the customer together with its bookings.
func (r *Repo) CreateCustomer(ctx context.Context, c *Customer) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Booking{}).Count(&n).Error
	return n, err
}
