// Package analysis runs the cascade of remote vision queries for an uploaded
// capture and persists the aggregated result.
//
// Stage order is fixed: labels, then faces when a label names a person, then
// celebrity recognition and known-face search when at least one face was
// found. Any failure aborts the run before anything is persisted.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/pizero-camera/internal/vision"
)

// PersonLabel gates face detection. Matching is a case-sensitive substring
// test on the label name as returned by the service.
const PersonLabel = "Person"

// Vision is the remote analysis service used by the cascade.
type Vision interface {
	DetectLabels(ctx context.Context, ref vision.ImageRef) ([]vision.Label, error)
	DetectFaces(ctx context.Context, ref vision.ImageRef) ([]vision.FaceDetail, error)
	RecognizeCelebrities(ctx context.Context, ref vision.ImageRef) ([]vision.Celebrity, error)
	SearchFaces(ctx context.Context, ref vision.ImageRef) ([]vision.FaceMatch, error)
}

// Sink persists the last-seen record, overwriting the previous one.
type Sink interface {
	PutSeen(ctx context.Context, rec Record) error
}

// Pipeline is the analysis cascade.
type Pipeline struct {
	vision Vision
	sinks  []Sink
}

// NewPipeline creates a pipeline that writes to every sink in order.
func NewPipeline(v Vision, sinks ...Sink) *Pipeline {
	return &Pipeline{vision: v, sinks: sinks}
}

// HasPerson reports whether any label name contains PersonLabel.
func HasPerson(labels []vision.Label) bool {
	for _, l := range labels {
		if strings.Contains(l.Name, PersonLabel) {
			return true
		}
	}
	return false
}

// Run executes the remote stages without persisting anything.
func (p *Pipeline) Run(ctx context.Context, ref vision.ImageRef) (Report, error) {
	var rep Report
	rep.Record.Image = ref

	labels, err := p.vision.DetectLabels(ctx, ref)
	if err != nil {
		return Report{}, fmt.Errorf("%s stage: %w", StageLabels, err)
	}
	if labels == nil {
		labels = []vision.Label{}
	}
	rep.Record.Labels = labels
	rep.Outcomes[StageLabels] = outcomeOf(len(labels))

	if !HasPerson(labels) {
		return rep, nil
	}

	faces, err := p.vision.DetectFaces(ctx, ref)
	if err != nil {
		return Report{}, fmt.Errorf("%s stage: %w", StageFaces, err)
	}
	if faces == nil {
		faces = []vision.FaceDetail{}
	}
	rep.Record.FaceDetails = faces
	rep.Outcomes[StageFaces] = outcomeOf(len(faces))

	if len(faces) == 0 {
		return rep, nil
	}

	// The two lookups are independent; each writes only its own field.
	var (
		celebs  []vision.Celebrity
		matches []vision.FaceMatch
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		celebs, err = p.vision.RecognizeCelebrities(gctx, ref)
		if err != nil {
			return fmt.Errorf("%s stage: %w", StageCelebrities, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		matches, err = p.vision.SearchFaces(gctx, ref)
		if err != nil {
			return fmt.Errorf("%s stage: %w", StageKnownFaces, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	if celebs == nil {
		celebs = []vision.Celebrity{}
	}
	if matches == nil {
		matches = []vision.FaceMatch{}
	}
	rep.Record.CelebrityFaces = celebs
	rep.Record.FaceMatches = matches
	rep.Outcomes[StageCelebrities] = outcomeOf(len(celebs))
	rep.Outcomes[StageKnownFaces] = outcomeOf(len(matches))
	return rep, nil
}

// Analyze runs the cascade and overwrites the last-seen record in every sink.
// Nothing is written when any stage fails. Sinks are written in order and the
// first failure stops the rest, so the authoritative sink goes last.
func (p *Pipeline) Analyze(ctx context.Context, ref vision.ImageRef) (Report, error) {
	start := time.Now()
	log.Info().Str("key", ref.Key).Msg("Analyzing image")

	rep, err := p.Run(ctx, ref)
	if err != nil {
		return Report{}, err
	}

	for _, s := range p.sinks {
		if err := s.PutSeen(ctx, rep.Record); err != nil {
			return Report{}, fmt.Errorf("persist last seen: %w", err)
		}
	}

	log.Info().
		Str("key", ref.Key).
		Strs("labels", labelNames(rep.Record.Labels)).
		Str(StageFaces.String(), rep.Outcome(StageFaces).String()).
		Str(StageCelebrities.String(), rep.Outcome(StageCelebrities).String()).
		Str(StageKnownFaces.String(), rep.Outcome(StageKnownFaces).String()).
		Dur("elapsed", time.Since(start)).
		Msg("Analysis complete")
	return rep, nil
}

func labelNames(labels []vision.Label) []string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Name
	}
	return names
}
