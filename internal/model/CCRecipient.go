package model

import "time"

type CCRecipient struct {
	BaseModel
	DocumentID string     `gorm:"type:text;not null;index" json:"documentId"`
	Email      string     `gorm:"type:citext;not null" json:"email"`
	Name       string     `gorm:"type:text" json:"name"`
	NotifiedAt *time.Time `gorm:"type:timestamptz" json:"notifiedAt"`

	Document Document `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

func (cc CCRecipient) TableName() string {
	return "cc_recipients"
}
