package model

// Placement of a field on a page, in PDF points from the top left corner.
type BaseAnnotateModel struct {
	Page   uint    `gorm:"type:integer;not null" json:"page" form:"page" binding:"required,gte=1"`
	X      float64 `gorm:"type:double precision;not null" json:"x" form:"x" binding:"gte=0"`
	Y      float64 `gorm:"type:double precision;not null" json:"y" form:"y" binding:"gte=0"`
	Width  float64 `gorm:"type:double precision;not null" json:"width" form:"width" binding:"required,gt=0"`
	Height float64 `gorm:"type:double precision;not null" json:"height" form:"height" binding:"required,gt=0"`
	Color  string  `gorm:"type:varchar(20)" json:"color" form:"color"`

	DocumentID string   `gorm:"type:text;not null;index" json:"documentId" form:"documentId"`
	Document   Document `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-" form:"-"`
}
