package models

// HistoryDetail is one detected acne class of a History episode. It corresponds
// to the 'history_detail' table.
type HistoryDetail struct {
	ID        uint `gorm:"primaryKey;autoIncrement" json:"id_riwayat_detail"`
	HistoryID uint `gorm:"not null;index" json:"id_riwayat"`

	AcneType            string  `gorm:"not null" json:"acne_types"`
	ClassificationCount int     `gorm:"not null" json:"jumlah_klasifikasi"` // same value on every row of an episode
	DetailImage         *string `json:"gambar_detail,omitempty"`           // raw base64, data URI prefix stripped; nil when no image matched
}

// TableName explicitly sets the table name for GORM.
func (HistoryDetail) TableName() string {
	return "history_detail"
}
