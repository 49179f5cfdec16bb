package models

// Asset processing states.
const (
	AssetStatusPending    = "pending"
	AssetStatusProcessing = "processing"
	AssetStatusDone       = "done"
	AssetStatusError      = "error"
)

// HistoryAsset tracks the archived captured photo of a History episode and its
// thumbnail. It corresponds to the 'history_assets' table and is filled in by
// the capture archiver after the episode has been committed.
type HistoryAsset struct {
	HistoryID uint `gorm:"primaryKey;autoIncrement:false" json:"id_riwayat"`

	OriginalPath  *string `json:"original_path,omitempty"`  // relative to the media store
	ThumbnailPath *string `json:"thumbnail_path,omitempty"` // relative to the media store

	Width   *int   `json:"width,omitempty"`
	Height  *int   `json:"height,omitempty"`
	TakenAt *int64 `json:"taken_at,omitempty"` // Unix timestamp from EXIF, when present

	Status      string  `gorm:"not null;default:pending" json:"status"`
	Error       *string `json:"error,omitempty"`
	ProcessedAt *int64  `json:"processed_at,omitempty"` // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (HistoryAsset) TableName() string {
	return "history_assets"
}
