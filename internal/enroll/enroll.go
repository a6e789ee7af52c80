// Package enroll registers a named face into the recognition collection from
// a fresh capture, independently of change detection.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/fpang/pizero-camera/internal/camera"
	"github.com/fpang/pizero-camera/internal/vision"
)

// ErrEmptyName is returned for a blank identity label.
var ErrEmptyName = errors.New("enrollment name is empty")

// Uploader stores a capture and returns its location.
type Uploader interface {
	UploadImage(ctx context.Context, img camera.Image) (vision.ImageRef, error)
}

// Indexer registers the faces in an uploaded image under an identity label.
type Indexer interface {
	IndexFace(ctx context.Context, ref vision.ImageRef, externalID string) (vision.IndexResult, error)
}

// Result describes one enrollment.
type Result struct {
	Name  string
	Image vision.ImageRef
	Index vision.IndexResult
}

// Enroller captures, uploads and indexes.
type Enroller struct {
	source   camera.Source
	uploader Uploader
	indexer  Indexer
}

// New creates an Enroller. source should be the shared exclusive source.
func New(source camera.Source, uploader Uploader, indexer Indexer) *Enroller {
	return &Enroller{source: source, uploader: uploader, indexer: indexer}
}

// Normalize trims the name, upper-cases its first letter and lower-cases the
// rest, so "ALICE" and "alice" enroll under the same label.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(name[size:])
}

// Enroll registers a new face entry for name. Repeated enrollment under the
// same name adds more entries; the collection is not checked for duplicates.
func (e *Enroller) Enroll(ctx context.Context, name string) (Result, error) {
	label := Normalize(name)
	if label == "" {
		return Result{}, ErrEmptyName
	}
	log.Info().Str("name", label).Msg("Indexing face")

	img, err := e.source.Capture(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("capture for %s: %w", label, err)
	}
	ref, err := e.uploader.UploadImage(ctx, img)
	if err != nil {
		return Result{}, fmt.Errorf("upload for %s: %w", label, err)
	}
	idx, err := e.indexer.IndexFace(ctx, ref, label)
	if err != nil {
		return Result{}, fmt.Errorf("index %s: %w", label, err)
	}

	ids := make([]string, 0, len(idx.Faces))
	for _, f := range idx.Faces {
		ids = append(ids, f.FaceID)
	}
	log.Info().
		Str("name", label).
		Str("key", ref.Key).
		Strs("faceIds", ids).
		Int("unindexed", idx.Unindexed).
		Msg("Face indexed")
	if len(idx.Faces) == 0 {
		log.Warn().Str("name", label).Str("key", ref.Key).Msg("No face found in enrollment image")
	}

	return Result{Name: label, Image: ref, Index: idx}, nil
}
