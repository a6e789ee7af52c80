package analysis

import (
	"encoding/json"

	"github.com/fpang/pizero-camera/internal/vision"
)

// Record is "what was last seen". Optional fields are nil when their stage
// did not run and empty when it ran without results; the JSON document omits
// the former and writes the latter as [].
type Record struct {
	Image          vision.ImageRef     `json:"Image"`
	Labels         []vision.Label      `json:"Labels"`
	FaceDetails    []vision.FaceDetail `json:"FaceDetails,omitempty"`
	CelebrityFaces []vision.Celebrity  `json:"CelebrityFaces,omitempty"`
	FaceMatches    []vision.FaceMatch  `json:"FaceMatches,omitempty"`
}

// recordJSON is the wire form of Record. omitempty on a slice also drops
// empty slices, so optional fields go through pointers that are nil only
// when the stage did not run.
type recordJSON struct {
	Image          vision.ImageRef      `json:"Image"`
	Labels         []vision.Label       `json:"Labels"`
	FaceDetails    *[]vision.FaceDetail `json:"FaceDetails,omitempty"`
	CelebrityFaces *[]vision.Celebrity  `json:"CelebrityFaces,omitempty"`
	FaceMatches    *[]vision.FaceMatch  `json:"FaceMatches,omitempty"`
}

// MarshalJSON keeps "ran empty" ([]) distinct from "not run" (absent).
func (r Record) MarshalJSON() ([]byte, error) {
	doc := recordJSON{Image: r.Image, Labels: r.Labels}
	if doc.Labels == nil {
		doc.Labels = []vision.Label{}
	}
	if r.FaceDetails != nil {
		doc.FaceDetails = &r.FaceDetails
	}
	if r.CelebrityFaces != nil {
		doc.CelebrityFaces = &r.CelebrityFaces
	}
	if r.FaceMatches != nil {
		doc.FaceMatches = &r.FaceMatches
	}
	return json.Marshal(doc)
}

// Stage identifies one remote call in the cascade.
type Stage int

const (
	StageLabels Stage = iota
	StageFaces
	StageCelebrities
	StageKnownFaces
	numStages
)

func (s Stage) String() string {
	switch s {
	case StageLabels:
		return "labels"
	case StageFaces:
		return "faces"
	case StageCelebrities:
		return "celebrities"
	case StageKnownFaces:
		return "knownFaces"
	default:
		return "unknown"
	}
}

// Outcome is the tri-state result of a stage.
type Outcome int

const (
	NotRun Outcome = iota
	RanEmpty
	RanWithResults
)

func (o Outcome) String() string {
	switch o {
	case NotRun:
		return "not-run"
	case RanEmpty:
		return "ran-empty"
	case RanWithResults:
		return "ran-with-results"
	default:
		return "unknown"
	}
}

func outcomeOf(n int) Outcome {
	if n == 0 {
		return RanEmpty
	}
	return RanWithResults
}

// Report is the persisted record plus how each stage went.
type Report struct {
	Record   Record
	Outcomes [numStages]Outcome
}

// Outcome returns the outcome of stage s.
func (r Report) Outcome(s Stage) Outcome {
	if s < 0 || s >= numStages {
		return NotRun
	}
	return r.Outcomes[s]
}
