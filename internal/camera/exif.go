package camera

import (
	"bytes"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
)

// Metadata is the subset of EXIF worth logging for a capture.
type Metadata struct {
	Make     string
	Model    string
	Taken    time.Time
	HasTaken bool
}

// Describe extracts EXIF metadata from the image. Camera stacks that do not
// embed EXIF produce an error, which callers treat as "no metadata".
func Describe(img Image) (Metadata, error) {
	exifData, err := imagemeta.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return Metadata{}, err
	}
	md := Metadata{
		Make:  strings.TrimSpace(exifData.Make),
		Model: strings.TrimSpace(exifData.Model),
	}
	if t := exifData.DateTimeOriginal(); !t.IsZero() {
		md.Taken = t
		md.HasTaken = true
	}
	return md, nil
}
