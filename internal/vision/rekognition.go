package vision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/rs/zerolog/log"
)

// RekognitionAPI is the subset of *rekognition.Client used here.
type RekognitionAPI interface {
	DetectLabels(ctx context.Context, in *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
	DetectFaces(ctx context.Context, in *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
	RecognizeCelebrities(ctx context.Context, in *rekognition.RecognizeCelebritiesInput, optFns ...func(*rekognition.Options)) (*rekognition.RecognizeCelebritiesOutput, error)
	SearchFacesByImage(ctx context.Context, in *rekognition.SearchFacesByImageInput, optFns ...func(*rekognition.Options)) (*rekognition.SearchFacesByImageOutput, error)
	IndexFaces(ctx context.Context, in *rekognition.IndexFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.IndexFacesOutput, error)
	CreateCollection(ctx context.Context, in *rekognition.CreateCollectionInput, optFns ...func(*rekognition.Options)) (*rekognition.CreateCollectionOutput, error)
}

// Rekognition runs the analysis calls against Amazon Rekognition, reading
// images straight from S3.
type Rekognition struct {
	client        RekognitionAPI
	collectionID  string
	maxLabels     int32
	minConfidence float32
}

// Compile-time check against the real client.
var _ RekognitionAPI = (*rekognition.Client)(nil)

// NewRekognition creates a client for the given face collection.
func NewRekognition(client RekognitionAPI, collectionID string, maxLabels int32, minConfidence float32) *Rekognition {
	return &Rekognition{
		client:        client,
		collectionID:  collectionID,
		maxLabels:     maxLabels,
		minConfidence: minConfidence,
	}
}

// CollectionID returns the collection searched and enrolled into.
func (r *Rekognition) CollectionID() string {
	return r.collectionID
}

func s3Image(ref ImageRef) *types.Image {
	return &types.Image{
		S3Object: &types.S3Object{
			Bucket: aws.String(ref.Bucket),
			Name:   aws.String(ref.Key),
		},
	}
}

// DetectLabels returns the top labels above the configured confidence.
func (r *Rekognition) DetectLabels(ctx context.Context, ref ImageRef) ([]Label, error) {
	start := time.Now()
	out, err := r.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         s3Image(ref),
		MaxLabels:     aws.Int32(r.maxLabels),
		MinConfidence: aws.Float32(r.minConfidence),
	})
	if err != nil {
		return nil, fmt.Errorf("DetectLabels %s: %w", ref.Key, err)
	}

	labels := make([]Label, 0, len(out.Labels))
	for _, l := range out.Labels {
		label := Label{
			Name:       aws.ToString(l.Name),
			Confidence: aws.ToFloat32(l.Confidence),
			Instances:  len(l.Instances),
		}
		for _, p := range l.Parents {
			label.Parents = append(label.Parents, aws.ToString(p.Name))
		}
		labels = append(labels, label)
	}
	log.Debug().Str("key", ref.Key).Int("labels", len(labels)).Dur("elapsed", time.Since(start)).Msg("Labels detected")
	return labels, nil
}

// DetectFaces returns every face with all attributes.
func (r *Rekognition) DetectFaces(ctx context.Context, ref ImageRef) ([]FaceDetail, error) {
	start := time.Now()
	out, err := r.client.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      s3Image(ref),
		Attributes: []types.Attribute{types.AttributeAll},
	})
	if err != nil {
		return nil, fmt.Errorf("DetectFaces %s: %w", ref.Key, err)
	}

	faces := make([]FaceDetail, 0, len(out.FaceDetails))
	for _, fd := range out.FaceDetails {
		faces = append(faces, faceDetailFromSDK(fd))
	}
	log.Debug().Str("key", ref.Key).Int("faces", len(faces)).Dur("elapsed", time.Since(start)).Msg("Faces detected")
	return faces, nil
}

// RecognizeCelebrities returns recognized public figures.
func (r *Rekognition) RecognizeCelebrities(ctx context.Context, ref ImageRef) ([]Celebrity, error) {
	out, err := r.client.RecognizeCelebrities(ctx, &rekognition.RecognizeCelebritiesInput{
		Image: s3Image(ref),
	})
	if err != nil {
		return nil, fmt.Errorf("RecognizeCelebrities %s: %w", ref.Key, err)
	}

	celebs := make([]Celebrity, 0, len(out.CelebrityFaces))
	for _, c := range out.CelebrityFaces {
		celeb := Celebrity{
			ID:              aws.ToString(c.Id),
			Name:            aws.ToString(c.Name),
			MatchConfidence: aws.ToFloat32(c.MatchConfidence),
			URLs:            c.Urls,
		}
		if c.Face != nil {
			celeb.BoundingBox = boundingBoxFromSDK(c.Face.BoundingBox)
		}
		celebs = append(celebs, celeb)
	}
	return celebs, nil
}

// SearchFaces matches the largest face in the image against the collection.
func (r *Rekognition) SearchFaces(ctx context.Context, ref ImageRef) ([]FaceMatch, error) {
	out, err := r.client.SearchFacesByImage(ctx, &rekognition.SearchFacesByImageInput{
		CollectionId: aws.String(r.collectionID),
		Image:        s3Image(ref),
	})
	if err != nil {
		return nil, fmt.Errorf("SearchFacesByImage %s in %s: %w", ref.Key, r.collectionID, err)
	}

	matches := make([]FaceMatch, 0, len(out.FaceMatches))
	for _, m := range out.FaceMatches {
		matches = append(matches, FaceMatch{
			Similarity: aws.ToFloat32(m.Similarity),
			Face:       faceFromSDK(m.Face),
		})
	}
	return matches, nil
}

// IndexFace enrolls the faces in the image under externalID.
func (r *Rekognition) IndexFace(ctx context.Context, ref ImageRef, externalID string) (IndexResult, error) {
	out, err := r.client.IndexFaces(ctx, &rekognition.IndexFacesInput{
		CollectionId:        aws.String(r.collectionID),
		Image:               s3Image(ref),
		ExternalImageId:     aws.String(externalID),
		DetectionAttributes: []types.Attribute{types.AttributeAll},
	})
	if err != nil {
		return IndexResult{}, fmt.Errorf("IndexFaces %s in %s: %w", ref.Key, r.collectionID, err)
	}

	res := IndexResult{ExternalID: externalID, Unindexed: len(out.UnindexedFaces)}
	for _, rec := range out.FaceRecords {
		res.Faces = append(res.Faces, faceFromSDK(rec.Face))
	}
	return res, nil
}

// EnsureCollection creates the face collection unless it already exists.
func (r *Rekognition) EnsureCollection(ctx context.Context) error {
	_, err := r.client.CreateCollection(ctx, &rekognition.CreateCollectionInput{
		CollectionId: aws.String(r.collectionID),
	})
	var exists *types.ResourceAlreadyExistsException
	switch {
	case err == nil:
		log.Info().Str("collection", r.collectionID).Msg("Face collection created")
		return nil
	case errors.As(err, &exists):
		log.Debug().Str("collection", r.collectionID).Msg("Face collection already exists")
		return nil
	default:
		return fmt.Errorf("CreateCollection %s: %w", r.collectionID, err)
	}
}

func boundingBoxFromSDK(b *types.BoundingBox) *BoundingBox {
	if b == nil {
		return nil
	}
	return &BoundingBox{
		Width:  aws.ToFloat32(b.Width),
		Height: aws.ToFloat32(b.Height),
		Left:   aws.ToFloat32(b.Left),
		Top:    aws.ToFloat32(b.Top),
	}
}

func faceFromSDK(f *types.Face) Face {
	if f == nil {
		return Face{}
	}
	return Face{
		FaceID:          aws.ToString(f.FaceId),
		ImageID:         aws.ToString(f.ImageId),
		ExternalImageID: aws.ToString(f.ExternalImageId),
		Confidence:      aws.ToFloat32(f.Confidence),
		BoundingBox:     boundingBoxFromSDK(f.BoundingBox),
	}
}

func faceDetailFromSDK(fd types.FaceDetail) FaceDetail {
	out := FaceDetail{
		BoundingBox: boundingBoxFromSDK(fd.BoundingBox),
		Confidence:  aws.ToFloat32(fd.Confidence),
	}
	if fd.AgeRange != nil {
		out.AgeRange = &AgeRange{Low: aws.ToInt32(fd.AgeRange.Low), High: aws.ToInt32(fd.AgeRange.High)}
	}
	if fd.Gender != nil {
		out.Gender = &Attribute{Value: string(fd.Gender.Value), Confidence: aws.ToFloat32(fd.Gender.Confidence)}
	}
	for _, e := range fd.Emotions {
		out.Emotions = append(out.Emotions, Attribute{Value: string(e.Type), Confidence: aws.ToFloat32(e.Confidence)})
	}
	if fd.Pose != nil {
		out.Pose = &Pose{
			Roll:  aws.ToFloat32(fd.Pose.Roll),
			Yaw:   aws.ToFloat32(fd.Pose.Yaw),
			Pitch: aws.ToFloat32(fd.Pose.Pitch),
		}
	}
	if fd.Quality != nil {
		out.Quality = &Quality{
			Brightness: aws.ToFloat32(fd.Quality.Brightness),
			Sharpness:  aws.ToFloat32(fd.Quality.Sharpness),
		}
	}
	return out
}
