package model

import "github.com/SeakMengs/AutoSign/internal/constant"

type Field struct {
	BaseAnnotateModel
	BaseModel

	Type     constant.FieldType `gorm:"type:text;not null" json:"type" form:"type" binding:"required,strNotEmpty"`
	Required bool               `gorm:"not null;default:true" json:"required" form:"required"`
	Value    string             `gorm:"type:text" json:"value,omitempty" form:"-"`

	// Index into the signer list of the send request, resolved to SignatureID at send
	SignerIndex *int   `gorm:"type:integer" json:"signerIndex" form:"signerIndex"`
	SignatureID string `gorm:"type:text;index;default:null" json:"signatureId,omitempty" form:"-"`
}

func (f Field) TableName() string {
	return "document_fields"
}

// CopyLayout returns the field placed on another document with bindings and values reset.
func (f Field) CopyLayout(documentID string) Field {
	return Field{
		BaseAnnotateModel: BaseAnnotateModel{
			Page:       f.Page,
			X:          f.X,
			Y:          f.Y,
			Width:      f.Width,
			Height:     f.Height,
			Color:      f.Color,
			DocumentID: documentID,
		},
		Type:        f.Type,
		Required:    f.Required,
		SignerIndex: f.SignerIndex,
	}
}
