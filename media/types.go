// media/types.go
package media

import "time"

type AssetType string

const (
	AssetTypeCapture   AssetType = "capture"
	AssetTypeThumbnail AssetType = "thumbnail"
	AssetTypeUnknown   AssetType = "unknown"
)

// AssetInfo describes a stored asset independently of the backend.
type AssetInfo struct {
	Size        int64
	ModTime     time.Time
	ContentType string
}

// CaptureMetadata contains dimension and EXIF information of a captured photo
type CaptureMetadata struct {
	Width       *int    `json:"width,omitempty"`
	Height      *int    `json:"height,omitempty"`
	CameraMake  *string `json:"camera_make,omitempty"`
	CameraModel *string `json:"camera_model,omitempty"`
	TakenAt     *int64  `json:"taken_at,omitempty"`
}
