package model

import (
	"encoding/json"
	"time"

	"github.com/SeakMengs/AutoSign/internal/constant"
)

// AuditLog rows are append only. ActorID is empty for anonymous signer actions.
type AuditLog struct {
	BaseModel
	DocumentID string              `gorm:"type:text;not null;index" json:"documentId"`
	EventType  constant.AuditEvent `gorm:"type:text;not null" json:"eventType"`
	ActorID    string              `gorm:"type:text;default:null" json:"actorId,omitempty"`
	Metadata   string              `gorm:"type:text;not null;default:'{}'" json:"-"`
	Timestamp  time.Time           `gorm:"type:timestamptz;not null;index" json:"timestamp"`

	Document Document `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

func (al AuditLog) TableName() string {
	return "audit_logs"
}

func NewAuditLog(documentID string, event constant.AuditEvent, actorID string, metadata map[string]any, at time.Time) (*AuditLog, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}

	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}

	return &AuditLog{
		DocumentID: documentID,
		EventType:  event,
		ActorID:    actorID,
		Metadata:   string(raw),
		Timestamp:  at,
	}, nil
}

func (al AuditLog) MetadataMap() map[string]any {
	m := map[string]any{}
	if al.Metadata == "" {
		return m
	}
	_ = json.Unmarshal([]byte(al.Metadata), &m)
	return m
}
