// Package store mirrors the last-seen analysis summary into DynamoDB so that
// dashboards can read a device's latest observation with a single GetItem.
//
// There is exactly one item per device (PK = DEVICE#{id}, SK = SEEN) and every
// analysis overwrites it; no history is kept.
package store

import (
	"context"

	"github.com/fpang/pizero-camera/internal/analysis"
)

// SeenStore persists and reads the per-device last-seen summary.
// All Get methods return (nil, nil) when the item does not exist.
type SeenStore interface {
	// PutSeen replaces the device's last-seen item with a summary of rec.
	PutSeen(ctx context.Context, rec analysis.Record) error

	// GetSeen returns the device's last-seen item.
	GetSeen(ctx context.Context) (*Seen, error)
}

// Seen is the DynamoDB projection of an analysis record.
// DeviceID is derived from the partition key and not stored as an attribute.
type Seen struct {
	DeviceID    string   `json:"deviceId" dynamodbav:"-"`
	Bucket      string   `json:"bucket" dynamodbav:"bucket"`
	ImageKey    string   `json:"imageKey" dynamodbav:"imageKey"`
	Labels      []string `json:"labels,omitempty" dynamodbav:"labels,omitempty"`
	FaceCount   int      `json:"faceCount" dynamodbav:"faceCount"`
	Celebrities []string `json:"celebrities,omitempty" dynamodbav:"celebrities,omitempty"`
	KnownFaces  []string `json:"knownFaces,omitempty" dynamodbav:"knownFaces,omitempty"`
	UpdatedAt   int64    `json:"updatedAt" dynamodbav:"updatedAt"`
}

// Summarize projects rec into a Seen item.
func Summarize(deviceID string, rec analysis.Record, updatedAt int64) *Seen {
	s := &Seen{
		DeviceID:  deviceID,
		Bucket:    rec.Image.Bucket,
		ImageKey:  rec.Image.Key,
		FaceCount: len(rec.FaceDetails),
		UpdatedAt: updatedAt,
	}
	for _, l := range rec.Labels {
		s.Labels = append(s.Labels, l.Name)
	}
	for _, c := range rec.CelebrityFaces {
		s.Celebrities = append(s.Celebrities, c.Name)
	}
	for _, m := range rec.FaceMatches {
		if m.Face.ExternalImageID != "" {
			s.KnownFaces = append(s.KnownFaces, m.Face.ExternalImageID)
		}
	}
	return s
}
