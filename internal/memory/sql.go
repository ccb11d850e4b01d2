package memory

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Record is one persisted chat message.
type Record struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	SessionID string    `gorm:"type:varchar(64);not null;index:idx_chat_msg_session_id,priority:1"`
	Role      string    `gorm:"type:varchar(16);not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index:idx_chat_msg_session_id,priority:2"`
}

func (Record) TableName() string { return "chat_messages" }

// SQL stores messages in the chat_messages table.
type SQL struct {
	db  *gorm.DB
	max int
}

func NewSQL(db *gorm.DB, maxMessages int) *SQL {
	return &SQL{db: db, max: normalizeMax(maxMessages)}
}

// Append inserts the messages and prunes the session down to the window in
// the same transaction.
func (s *SQL) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	msgs = stamp(msgs, time.Now())
	rows := make([]Record, len(msgs))
	for i, m := range msgs {
		rows[i] = Record{SessionID: sessionID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&Record{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
			return err
		}
		over := int(count) - s.max
		if over <= 0 {
			return nil
		}

		var stale []uint64
		if err := tx.Model(&Record{}).
			Where("session_id = ?", sessionID).
			Order("id ASC").
			Limit(over).
			Pluck("id", &stale).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", stale).Delete(&Record{}).Error
	})
}

// History returns the newest window, oldest first. Rows left over from a
// larger window are ignored until the next Append prunes them.
func (s *SQL) History(ctx context.Context, sessionID string) ([]Message, error) {
	var rows []Record
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(s.max).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Message, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = Message{Role: r.Role, Content: r.Content, CreatedAt: r.CreatedAt}
	}
	return out, nil
}
