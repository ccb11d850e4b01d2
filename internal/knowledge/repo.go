package knowledge

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// ChunkRecord is the persisted form of a Chunk, keyed by document id + chunk index.
type ChunkRecord struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	DocumentID   string    `gorm:"type:varchar(191);not null;uniqueIndex:uniq_doc_chunk,priority:1"`
	ChunkIndex   int       `gorm:"not null;uniqueIndex:uniq_doc_chunk,priority:2"`
	Content      string    `gorm:"type:text;not null"`
	Tokens       int       `gorm:"not null"`
	DocumentHash string    `gorm:"type:varchar(64);not null"`
	Embedding    []float32 `gorm:"serializer:json;type:mediumtext"`
	CreatedAt    time.Time
}

func (ChunkRecord) TableName() string { return "knowledge_chunks" }

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// ReplaceDocument swaps all chunks of a document in one transaction.
func (r *Repo) ReplaceDocument(ctx context.Context, docID string, chunks []Chunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", docID).Delete(&ChunkRecord{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		rows := make([]ChunkRecord, len(chunks))
		for i, c := range chunks {
			rows[i] = ChunkRecord{
				DocumentID:   c.DocumentID,
				ChunkIndex:   c.Index,
				Content:      c.Content,
				Tokens:       c.Tokens,
				DocumentHash: c.DocumentHash,
				Embedding:    c.Embedding,
			}
		}
		return tx.CreateInBatches(rows, 100).Error
	})
}

func (r *Repo) DeleteDocument(ctx context.Context, docID string) error {
	return r.db.WithContext(ctx).Where("document_id = ?", docID).Delete(&ChunkRecord{}).Error
}

// All returns every chunk in ingestion order.
func (r *Repo) All(ctx context.Context) ([]Chunk, error) {
	var rows []ChunkRecord
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Chunk, len(rows))
	for i, row := range rows {
		out[i] = Chunk{
			DocumentID:   row.DocumentID,
			Index:        row.ChunkIndex,
			Content:      row.Content,
			Tokens:       row.Tokens,
			Embedding:    row.Embedding,
			DocumentHash: row.DocumentHash,
		}
	}
	return out, nil
}
