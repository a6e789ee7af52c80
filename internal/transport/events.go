package transport

import (
	"time"

	"github.com/fpang/pizero-camera/internal/analysis"
	"github.com/fpang/pizero-camera/internal/enroll"
)

// Event kinds published on the outbound topic.
const (
	EventOnline  = "online"
	EventCamera  = "camera"
	EventSeen    = "seen"
	EventIndexed = "indexed"
)

// Event is the JSON document published on the outbound topic.
type Event struct {
	Event       string    `json:"event"`
	Device      string    `json:"device,omitempty"`
	Active      *bool     `json:"active,omitempty"`
	Key         string    `json:"key,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	Faces       *int      `json:"faces,omitempty"`
	Celebrities []string  `json:"celebrities,omitempty"`
	Matches     []string  `json:"matches,omitempty"`
	Name        string    `json:"name,omitempty"`
	Time        time.Time `json:"time"`
}

// OnlineEvent announces a (re)connected agent.
func OnlineEvent(device string) Event {
	return Event{Event: EventOnline, Device: device, Time: time.Now().UTC()}
}

// CameraEvent reports a monitoring state change.
func CameraEvent(active bool) Event {
	return Event{Event: EventCamera, Active: &active, Time: time.Now().UTC()}
}

// SeenEvent summarizes a persisted last-seen record. Matches lists the
// ExternalImageId of every known-face match.
func SeenEvent(rec analysis.Record) Event {
	ev := Event{Event: EventSeen, Key: rec.Image.Key, Time: time.Now().UTC()}
	for _, l := range rec.Labels {
		ev.Labels = append(ev.Labels, l.Name)
	}
	if rec.FaceDetails != nil {
		n := len(rec.FaceDetails)
		ev.Faces = &n
	}
	for _, c := range rec.CelebrityFaces {
		ev.Celebrities = append(ev.Celebrities, c.Name)
	}
	for _, m := range rec.FaceMatches {
		ev.Matches = append(ev.Matches, m.Face.ExternalImageID)
	}
	return ev
}

// IndexedEvent reports a completed enrollment.
func IndexedEvent(res enroll.Result) Event {
	n := len(res.Index.Faces)
	return Event{Event: EventIndexed, Name: res.Name, Key: res.Image.Key, Faces: &n, Time: time.Now().UTC()}
}
