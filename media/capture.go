package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DecodeCapture decodes a base64 capture, with or without a data URI prefix,
// and reports the file extension matching its sniffed content type.
func DecodeCapture(encoded string) ([]byte, string, error) {
	payload := strings.TrimSpace(encoded)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 || !strings.HasSuffix(payload[:comma], ";base64") {
			return nil, "", errors.New("capture is not a base64 data URI")
		}
		payload = payload[comma+1:]
	}
	if payload == "" {
		return nil, "", errors.New("capture is empty")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// some clients drop the padding
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if rawErr != nil {
			return nil, "", fmt.Errorf("failed to decode capture: %w", err)
		}
	}

	switch http.DetectContentType(data) {
	case "image/jpeg":
		return data, ".jpg", nil
	case "image/png":
		return data, ".png", nil
	case "image/gif":
		return data, ".gif", nil
	default:
		return nil, "", errors.New("capture is not a supported image")
	}
}
