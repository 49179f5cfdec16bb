package media

import (
	"bytes"
	"image"
	"log"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// helper to safely get a string tag, trimming null terminators and quotes
func getString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val, err := tag.StringVal()
	if err != nil {
		return nil
	}
	val = strings.TrimRight(val, "\x00")
	if val == "" {
		return nil
	}
	return &val
}

// ReadCaptureMetadata extracts dimensions and EXIF data from an encoded image.
// A capture without EXIF data is not an error; only the dimensions are set.
func ReadCaptureMetadata(data []byte) *CaptureMetadata {
	meta := &CaptureMetadata{}

	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		w, h := config.Width, config.Height
		meta.Width = &w
		meta.Height = &h
	} else {
		log.Printf("metadata: Warning - Could not decode config for capture dimensions: %v", err)
	}

	exifData, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		// browser captures usually carry no EXIF at all
		log.Printf("metadata: No EXIF data in %s capture: %v", format, err)
		return meta
	}

	meta.CameraMake = getString(exifData, exif.Make)
	meta.CameraModel = getString(exifData, exif.Model)
	if dt, err := exifData.DateTime(); err == nil {
		ts := dt.Unix()
		meta.TakenAt = &ts
	}
	return meta
}
