package model

import (
	"time"

	"github.com/SeakMengs/AutoSign/internal/constant"
)

type Signature struct {
	BaseModel
	DocumentID   string                   `gorm:"type:text;not null;index" json:"documentId"`
	SignerEmail  string                   `gorm:"type:citext;not null" json:"signerEmail"`
	SignerName   string                   `gorm:"type:text;not null" json:"signerName"`
	SigningOrder int                      `gorm:"type:integer;not null;default:1" json:"order"`
	Status       constant.SignatureStatus `gorm:"type:text;not null;default:'PENDING'" json:"status"`

	Token          string    `gorm:"type:text;not null;uniqueIndex" json:"-"`
	TokenExpiresAt time.Time `gorm:"type:timestamptz;not null" json:"tokenExpiresAt"`

	SignatureData string     `gorm:"type:text" json:"-"`
	SignatureType string     `gorm:"type:text" json:"signatureType,omitempty"`
	SignedAt      *time.Time `gorm:"type:timestamptz" json:"signedAt"`
	IPAddress     string     `gorm:"type:text" json:"-"`
	UserAgent     string     `gorm:"type:text" json:"-"`

	DeclineReason string     `gorm:"type:text" json:"declineReason,omitempty"`
	DeclinedAt    *time.Time `gorm:"type:timestamptz" json:"declinedAt"`

	DelegatedToEmail string     `gorm:"type:citext" json:"delegatedToEmail,omitempty"`
	DelegatedToName  string     `gorm:"type:text" json:"delegatedToName,omitempty"`
	DelegatedAt      *time.Time `gorm:"type:timestamptz" json:"delegatedAt"`

	ReminderSentAt *time.Time `gorm:"type:timestamptz" json:"reminderSentAt"`
	InvitedAt      *time.Time `gorm:"type:timestamptz" json:"invitedAt"`

	// bcrypt hash, empty when no access code gate is configured
	AccessCode           string     `gorm:"type:text" json:"-"`
	AccessCodeVerifiedAt *time.Time `gorm:"type:timestamptz" json:"accessCodeVerifiedAt"`

	Document Document `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

func (s Signature) TableName() string {
	return "signatures"
}

func (s Signature) HasAccessCode() bool {
	return s.AccessCode != ""
}

func (s Signature) IsTokenExpired(now time.Time) bool {
	return s.TokenExpiresAt.Before(now)
}

type SignedSignature struct {
	SignatureData string
	SignatureType string
	SignedAt      time.Time
	IPAddress     string
	UserAgent     string
}

// Delegation rewrites the signer identity and swaps the live token.
type Delegation struct {
	OriginalEmail string
	OriginalName  string
	NewEmail      string
	NewName       string
	NewToken      string
	DelegatedAt   time.Time
	// Set when the delegate can act immediately and is invited right away
	InvitedAt *time.Time
}
