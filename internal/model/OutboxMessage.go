package model

import (
	"time"

	"github.com/SeakMengs/AutoSign/internal/constant"
)

// OutboxMessage is an email the workflow intends to send, committed in the same
// transaction as the state change that caused it.
type OutboxMessage struct {
	BaseModel
	TemplateFile string                `gorm:"type:text;not null" json:"templateFile"`
	ToEmail      string                `gorm:"type:citext;not null" json:"toEmail"`
	ToName       string                `gorm:"type:text" json:"toName"`
	Payload      string                `gorm:"type:text;not null;default:'{}'" json:"payload"`
	Status       constant.OutboxStatus `gorm:"type:text;not null;default:'PENDING';index" json:"status"`
	Attempts     int                   `gorm:"type:integer;not null;default:0" json:"attempts"`
	LastError    string                `gorm:"type:text" json:"lastError,omitempty"`
	DispatchedAt *time.Time            `gorm:"type:timestamptz" json:"dispatchedAt"`
}

func (om OutboxMessage) TableName() string {
	return "outbox_messages"
}
