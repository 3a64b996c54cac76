package model

import (
	"time"

	"github.com/SeakMengs/AutoSign/internal/constant"
)

type Document struct {
	BaseModel
	OwnerID     string                  `gorm:"type:text;not null;index" json:"ownerId"`
	OwnerEmail  string                  `gorm:"type:citext;not null" json:"ownerEmail"`
	Title       string                  `gorm:"type:text;not null" json:"title"`
	Status      constant.DocumentStatus `gorm:"type:text;not null;default:'DRAFT';index" json:"status"`
	FileID      string                  `gorm:"type:text;not null;index" json:"fileId"`
	ContentHash string                  `gorm:"type:varchar(64);not null" json:"contentHash"`
	ExpiresAt   *time.Time              `gorm:"type:timestamptz" json:"expiresAt"`
	VoidedAt    *time.Time              `gorm:"type:timestamptz" json:"voidedAt"`
	VoidReason  string                  `gorm:"type:text" json:"voidReason,omitempty"`
	CompletedAt *time.Time              `gorm:"type:timestamptz" json:"completedAt"`

	File File `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
}

func (d Document) TableName() string {
	return "documents"
}

// IsPastExpiry reports whether a PENDING document has outlived expires_at but
// has not been swept to EXPIRED yet.
func (d Document) IsPastExpiry(now time.Time) bool {
	return d.Status == constant.DocumentStatusPending && d.ExpiresAt != nil && d.ExpiresAt.Before(now)
}

// Columns written together with a status transition. Nil pointers are left untouched.
type DocumentStatusChange struct {
	ExpiresAt   *time.Time
	VoidedAt    *time.Time
	VoidReason  string
	CompletedAt *time.Time
}

func (c DocumentStatusChange) Columns(status constant.DocumentStatus) map[string]any {
	cols := map[string]any{"status": status}
	if c.ExpiresAt != nil {
		cols["expires_at"] = *c.ExpiresAt
	}
	if c.VoidedAt != nil {
		cols["voided_at"] = *c.VoidedAt
		cols["void_reason"] = c.VoidReason
	}
	if c.CompletedAt != nil {
		cols["completed_at"] = *c.CompletedAt
	}
	return cols
}
