// Package s3util stores captures and the last-seen analysis record in S3.
package s3util

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/fpang/pizero-camera/internal/analysis"
	"github.com/fpang/pizero-camera/internal/camera"
	"github.com/fpang/pizero-camera/internal/vision"
)

// imageTimeLayout renders capture timestamps as YYYYMMDDHHMMSS.
const imageTimeLayout = "20060102150405"

// PutObjectAPI is the subset of *s3.Client used by Uploader.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader writes images under a fixed prefix and overwrites one seen key.
type Uploader struct {
	client      PutObjectAPI
	bucket      string
	imagePrefix string
	seenKey     string
	deviceID    string
}

// Compile-time checks.
var (
	_ PutObjectAPI  = (*s3.Client)(nil)
	_ analysis.Sink = (*Uploader)(nil)
)

// NewUploader creates an Uploader. imagePrefix is prepended verbatim, so it
// normally ends with a slash ("pizero/").
func NewUploader(client PutObjectAPI, bucket, imagePrefix, seenKey, deviceID string) *Uploader {
	return &Uploader{
		client:      client,
		bucket:      bucket,
		imagePrefix: imagePrefix,
		seenKey:     seenKey,
		deviceID:    deviceID,
	}
}

// Bucket returns the destination bucket.
func (u *Uploader) Bucket() string {
	return u.bucket
}

// ImageKey returns <prefix>image-<YYYYMMDDHHMMSS>.jpg for the capture time.
func (u *Uploader) ImageKey(img camera.Image) string {
	return fmt.Sprintf("%simage-%s.jpg", u.imagePrefix, img.CapturedAt.Format(imageTimeLayout))
}

// UploadImage stores the capture and returns its location for analysis.
func (u *Uploader) UploadImage(ctx context.Context, img camera.Image) (vision.ImageRef, error) {
	key := u.ImageKey(img)
	log.Debug().Str("bucket", u.bucket).Str("key", key).Uint64("bytes", img.Size()).Msg("Uploading image to S3")

	out, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(img.Data),
		ContentType: aws.String("image/jpeg"),
		Tagging:     Tagging(u.deviceID),
	})
	if err != nil {
		return vision.ImageRef{}, fmt.Errorf("upload image %s: %w", key, err)
	}

	log.Info().Str("key", key).Str("etag", aws.ToString(out.ETag)).Msg("Image uploaded to S3")
	return vision.ImageRef{Bucket: u.bucket, Key: key}, nil
}

// PutSeen serializes rec and overwrites the last-seen object.
func (u *Uploader) PutSeen(ctx context.Context, rec analysis.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal last seen: %w", err)
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(u.seenKey),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Tagging:     Tagging(u.deviceID),
	})
	if err != nil {
		return fmt.Errorf("upload last seen %s: %w", u.seenKey, err)
	}

	log.Debug().Str("key", u.seenKey).Int("bytes", len(body)).Msg("Last seen record uploaded to S3")
	return nil
}
