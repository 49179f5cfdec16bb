package models

import "time"

// History is one detection episode submitted by a user. It corresponds to the
// 'history' table. Rows are written once and never updated.
type History struct {
	ID     uint `gorm:"primaryKey;autoIncrement" json:"id_riwayat"`
	UserID uint `gorm:"not null;index" json:"id_user"`

	Title string `gorm:"not null" json:"judul_penyakit"` // comma-joined acne type labels
	Image string `json:"gambar"`                         // annotated detection result, base64 or data URI

	Overview        string `json:"overview"`
	Recommendations string `json:"recommendations"`
	SkincareTips    string `json:"skincare_tips"`
	ImportantNotes  string `json:"important_notes"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	// Relationships
	Details []HistoryDetail `gorm:"foreignKey:HistoryID;constraint:OnDelete:CASCADE" json:"details,omitempty"`
	Asset   *HistoryAsset   `gorm:"foreignKey:HistoryID;constraint:OnDelete:CASCADE" json:"asset,omitempty"`
	User    *User           `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName explicitly sets the table name for GORM.
func (History) TableName() string {
	return "history"
}
