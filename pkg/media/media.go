// Package media validates and normalizes user uploads (skin photos and
// voice recordings) before they are stored as content-addressed blobs.
package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"

	// Decoders for the formats phones and scanners commonly produce.
	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/ports"
	"golang.org/x/image/draw"
)

const (
	// MaxAudioBytes is the largest accepted voice recording.
	MaxAudioBytes = 10 << 20
	// MaxImageBytes is the largest accepted image upload.
	MaxImageBytes = 10 << 20
	// MaxImageSide is the longest edge kept after downscaling.
	MaxImageSide = 1024
)

// TooLargeError reports an upload over its size limit.
type TooLargeError struct {
	Kind  string
	Size  int
	Limit int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("%s too large (>%dMB)", e.Kind, e.Limit>>20)
}

// Image is a decoded and possibly downscaled upload.
type Image struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	Format      string
	Resized     bool
}

// PrepareImage checks that data is a supported image and downscales it so
// its longest side is at most MaxImageSide. Oversized PNGs stay PNG; every
// other resized format is re-encoded as JPEG.
func PrepareImage(data []byte) (*Image, error) {
	if len(data) > MaxImageBytes {
		return nil, &TooLargeError{Kind: "image", Size: len(data), Limit: MaxImageBytes}
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported image: %w", err)
	}

	img := &Image{
		Data:        data,
		ContentType: "image/" + format,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Format:      format,
	}
	if max(cfg.Width, cfg.Height) <= MaxImageSide {
		return img, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	w, h := fitWithin(cfg.Width, cfg.Height, MaxImageSide)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if format == "png" {
		err = png.Encode(&buf, dst)
	} else {
		format = "jpeg"
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	img.Data = buf.Bytes()
	img.ContentType = "image/" + format
	img.Format = format
	img.Width, img.Height = w, h
	img.Resized = true
	return img, nil
}

func fitWithin(w, h, side int) (int, int) {
	if w >= h {
		return side, max(1, h*side/w)
	}
	return max(1, w*side/h), side
}

// CheckAudio enforces the recording size limit and sniffs the content type.
func CheckAudio(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty audio recording")
	}
	if len(data) > MaxAudioBytes {
		return "", &TooLargeError{Kind: "audio", Size: len(data), Limit: MaxAudioBytes}
	}
	return http.DetectContentType(data), nil
}

// Ref builds the content-addressed reference of data.
func Ref(data []byte, contentType, name string) domain.BlobRef {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	return domain.BlobRef{
		Key:         domain.StorePrefixBlob + digest,
		ContentType: contentType,
		Size:        int64(len(data)),
		SHA256:      digest,
		Name:        name,
	}
}

// Save stores data under its content hash and returns the reference.
// Identical uploads map to the same key.
func Save(ctx context.Context, store ports.BlobStore, data []byte, contentType, name string) (domain.BlobRef, error) {
	ref := Ref(data, contentType, name)
	if err := store.Put(ctx, ref.Key, data); err != nil {
		return domain.BlobRef{}, fmt.Errorf("store %s: %w", ref.Key, err)
	}
	return ref, nil
}

// SaveImage prepares and stores an image upload.
func SaveImage(ctx context.Context, store ports.BlobStore, data []byte, name string) (domain.BlobRef, error) {
	img, err := PrepareImage(data)
	if err != nil {
		return domain.BlobRef{}, err
	}
	ref, err := Save(ctx, store, img.Data, img.ContentType, name)
	if err != nil {
		return domain.BlobRef{}, err
	}
	ref.Width, ref.Height = img.Width, img.Height
	return ref, nil
}

// SaveAudio checks and stores a voice recording.
func SaveAudio(ctx context.Context, store ports.BlobStore, data []byte, name string) (domain.BlobRef, error) {
	ct, err := CheckAudio(data)
	if err != nil {
		return domain.BlobRef{}, err
	}
	return Save(ctx, store, data, ct, name)
}
