package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"math"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	ThumbnailJpegQuality   = 90
	ThumbnailFileExtension = ".jpg"
)

// Processor handles media transformations like thumbnailing. it relies on a
// Store implementation for saving the results.
type Processor struct {
	store Store
}

func NewProcessor(store Store) *Processor {
	return &Processor{store: store}
}

// ThumbnailSize returns the dimensions that fit width x height into a square of
// maxSize while keeping the aspect ratio. Images that already fit are kept.
func ThumbnailSize(width, height, maxSize int) (int, int) {
	var newWidth, newHeight int
	if width > height {
		if width <= maxSize {
			newWidth, newHeight = width, height
		} else {
			newWidth = maxSize
			newHeight = int(math.Round(float64(height) * (float64(maxSize) / float64(width))))
		}
	} else {
		if height <= maxSize {
			newWidth, newHeight = width, height
		} else {
			newHeight = maxSize
			newWidth = int(math.Round(float64(width) * (float64(maxSize) / float64(height))))
		}
	}
	return max(1, newWidth), max(1, newHeight)
}

// ArchiveCapture stores the original capture bytes of a history under a UUID
// filename. returns the relative path of the stored file.
func (p *Processor) ArchiveCapture(ctx context.Context, historyID uint, data []byte, ext string) (string, error) {
	captureUUID, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID for capture: %w", err)
	}

	savedRelPath, err := p.store.Save(ctx, AssetTypeCapture, historyDir(historyID), captureUUID.String()+ext, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to save capture via store: %w", err)
	}
	return savedRelPath, nil
}

// GenerateThumbnail creates a thumbnail where the longest side matches maxSize.
// saves the result using the Store. returns relative path to saved thumb or error.
func (p *Processor) GenerateThumbnail(ctx context.Context, historyID uint, originalImg image.Image, maxSize int) (string, error) {
	origBounds := originalImg.Bounds()
	origWidth := origBounds.Dx()
	origHeight := origBounds.Dy()
	if origWidth <= 0 || origHeight <= 0 {
		return "", fmt.Errorf("invalid original image dimensions: %dx%d", origWidth, origHeight)
	}

	newWidth, newHeight := ThumbnailSize(origWidth, origHeight, maxSize)
	thumb := imaging.Resize(originalImg, newWidth, newHeight, imaging.Lanczos)

	reader, writer := io.Pipe()

	go func() {
		err := imaging.Encode(writer, thumb, imaging.JPEG, imaging.JPEGQuality(ThumbnailJpegQuality))
		if err != nil {
			log.Printf("processor: Failed to encode thumbnail: %v", err)
			writer.CloseWithError(fmt.Errorf("thumbnail encoding failed: %w", err))
			return
		}
		writer.Close()
	}()

	thumbUUID, err := uuid.NewRandom()
	if err != nil {
		reader.CloseWithError(err)
		return "", fmt.Errorf("failed to generate UUID for thumbnail: %w", err)
	}
	targetFilename := thumbUUID.String() + ThumbnailFileExtension

	savedRelPath, err := p.store.Save(ctx, AssetTypeThumbnail, historyDir(historyID), targetFilename, reader)
	// unblock the encoder if Save returned before draining the pipe
	reader.Close()
	if err != nil {
		return "", fmt.Errorf("failed to save thumbnail via store: %w", err)
	}

	log.Printf("processor: Generated thumbnail %dx%d for history %d at %s", newWidth, newHeight, historyID, savedRelPath)
	return savedRelPath, nil
}

// DecodeImage decodes capture bytes into an image, honouring EXIF orientation.
func DecodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func historyDir(historyID uint) string {
	return strconv.FormatUint(uint64(historyID), 10)
}

// Remove deletes a stored asset.
func (p *Processor) Remove(ctx context.Context, relativePath string) error {
	return p.store.Delete(ctx, relativePath)
}
