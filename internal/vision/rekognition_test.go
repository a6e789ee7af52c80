package vision

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// fakeRekognition records inputs and returns canned outputs.
type fakeRekognition struct {
	labels    *rekognition.DetectLabelsOutput
	faces     *rekognition.DetectFacesOutput
	celebs    *rekognition.RecognizeCelebritiesOutput
	matches   *rekognition.SearchFacesByImageOutput
	indexed   *rekognition.IndexFacesOutput
	createErr error
	err       error

	labelsIn *rekognition.DetectLabelsInput
	facesIn  *rekognition.DetectFacesInput
	searchIn *rekognition.SearchFacesByImageInput
	indexIn  *rekognition.IndexFacesInput
}

func (f *fakeRekognition) DetectLabels(_ context.Context, in *rekognition.DetectLabelsInput, _ ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error) {
	f.labelsIn = in
	return f.labels, f.err
}

func (f *fakeRekognition) DetectFaces(_ context.Context, in *rekognition.DetectFacesInput, _ ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
	f.facesIn = in
	return f.faces, f.err
}

func (f *fakeRekognition) RecognizeCelebrities(_ context.Context, _ *rekognition.RecognizeCelebritiesInput, _ ...func(*rekognition.Options)) (*rekognition.RecognizeCelebritiesOutput, error) {
	return f.celebs, f.err
}

func (f *fakeRekognition) SearchFacesByImage(_ context.Context, in *rekognition.SearchFacesByImageInput, _ ...func(*rekognition.Options)) (*rekognition.SearchFacesByImageOutput, error) {
	f.searchIn = in
	return f.matches, f.err
}

func (f *fakeRekognition) IndexFaces(_ context.Context, in *rekognition.IndexFacesInput, _ ...func(*rekognition.Options)) (*rekognition.IndexFacesOutput, error) {
	f.indexIn = in
	return f.indexed, f.err
}

func (f *fakeRekognition) CreateCollection(_ context.Context, _ *rekognition.CreateCollectionInput, _ ...func(*rekognition.Options)) (*rekognition.CreateCollectionOutput, error) {
	return &rekognition.CreateCollectionOutput{}, f.createErr
}

var testRef = ImageRef{Bucket: "bucket", Key: "pizero/image-20240501123000.jpg"}

func TestDetectLabels(t *testing.T) {
	fake := &fakeRekognition{labels: &rekognition.DetectLabelsOutput{
		Labels: []types.Label{
			{Name: aws.String("Person"), Confidence: aws.Float32(98.5), Instances: []types.Instance{{}, {}}},
			{Name: aws.String("Sofa"), Confidence: aws.Float32(80), Parents: []types.Parent{{Name: aws.String("Furniture")}}},
		},
	}}
	r := NewRekognition(fake, "security-camera", 5, 70)

	labels, err := r.DetectLabels(context.Background(), testRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("expected 2 labels, got %d", len(labels))
	}
	if labels[0].Name != "Person" || labels[0].Confidence != 98.5 || labels[0].Instances != 2 {
		t.Errorf("unexpected first label %+v", labels[0])
	}
	if len(labels[1].Parents) != 1 || labels[1].Parents[0] != "Furniture" {
		t.Errorf("unexpected parents %+v", labels[1].Parents)
	}

	in := fake.labelsIn
	if aws.ToInt32(in.MaxLabels) != 5 || aws.ToFloat32(in.MinConfidence) != 70 {
		t.Errorf("expected MaxLabels=5 MinConfidence=70, got %v %v", aws.ToInt32(in.MaxLabels), aws.ToFloat32(in.MinConfidence))
	}
	if aws.ToString(in.Image.S3Object.Bucket) != "bucket" || aws.ToString(in.Image.S3Object.Name) != testRef.Key {
		t.Errorf("unexpected S3 object %+v", in.Image.S3Object)
	}
}

func TestDetectFaces_AllAttributes(t *testing.T) {
	fake := &fakeRekognition{faces: &rekognition.DetectFacesOutput{
		FaceDetails: []types.FaceDetail{{
			BoundingBox: &types.BoundingBox{Width: aws.Float32(0.2), Height: aws.Float32(0.3), Left: aws.Float32(0.1), Top: aws.Float32(0.4)},
			Confidence:  aws.Float32(99),
			AgeRange:    &types.AgeRange{Low: aws.Int32(25), High: aws.Int32(35)},
			Gender:      &types.Gender{Value: types.GenderTypeFemale, Confidence: aws.Float32(97)},
			Emotions:    []types.Emotion{{Type: types.EmotionNameHappy, Confidence: aws.Float32(90)}},
			Pose:        &types.Pose{Roll: aws.Float32(1), Yaw: aws.Float32(2), Pitch: aws.Float32(3)},
		}},
	}}
	r := NewRekognition(fake, "security-camera", 5, 70)

	faces, err := r.DetectFaces(context.Background(), testRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("expected 1 face, got %d", len(faces))
	}
	f := faces[0]
	if f.BoundingBox == nil || f.BoundingBox.Top != 0.4 {
		t.Errorf("unexpected bounding box %+v", f.BoundingBox)
	}
	if f.AgeRange == nil || f.AgeRange.Low != 25 || f.AgeRange.High != 35 {
		t.Errorf("unexpected age range %+v", f.AgeRange)
	}
	if f.Gender == nil || f.Gender.Value != "Female" {
		t.Errorf("unexpected gender %+v", f.Gender)
	}
	if len(f.Emotions) != 1 || f.Emotions[0].Value != "HAPPY" {
		t.Errorf("unexpected emotions %+v", f.Emotions)
	}
	if f.Quality != nil {
		t.Error("expected nil quality when not returned")
	}

	attrs := fake.facesIn.Attributes
	if len(attrs) != 1 || attrs[0] != types.AttributeAll {
		t.Errorf("expected Attributes=[ALL], got %v", attrs)
	}
}

func TestSearchFaces_UsesCollection(t *testing.T) {
	fake := &fakeRekognition{matches: &rekognition.SearchFacesByImageOutput{
		FaceMatches: []types.FaceMatch{{
			Similarity: aws.Float32(99.1),
			Face:       &types.Face{FaceId: aws.String("face-1"), ExternalImageId: aws.String("Alice")},
		}},
	}}
	r := NewRekognition(fake, "security-camera", 5, 70)

	matches, err := r.SearchFaces(context.Background(), testRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].Face.ExternalImageID != "Alice" || matches[0].Similarity != 99.1 {
		t.Errorf("unexpected matches %+v", matches)
	}
	if aws.ToString(fake.searchIn.CollectionId) != "security-camera" {
		t.Errorf("expected collection security-camera, got %q", aws.ToString(fake.searchIn.CollectionId))
	}
}

func TestRecognizeCelebrities(t *testing.T) {
	fake := &fakeRekognition{celebs: &rekognition.RecognizeCelebritiesOutput{
		CelebrityFaces: []types.Celebrity{{
			Id:              aws.String("abc"),
			Name:            aws.String("Jeff Bezos"),
			MatchConfidence: aws.Float32(96),
			Urls:            []string{"www.imdb.com/name/nm1757263"},
			Face:            &types.ComparedFace{BoundingBox: &types.BoundingBox{Width: aws.Float32(0.5)}},
		}},
	}}
	r := NewRekognition(fake, "security-camera", 5, 70)

	celebs, err := r.RecognizeCelebrities(context.Background(), testRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(celebs) != 1 || celebs[0].Name != "Jeff Bezos" || celebs[0].BoundingBox == nil {
		t.Errorf("unexpected celebrities %+v", celebs)
	}
}

func TestIndexFace(t *testing.T) {
	fake := &fakeRekognition{indexed: &rekognition.IndexFacesOutput{
		FaceRecords:    []types.FaceRecord{{Face: &types.Face{FaceId: aws.String("face-9"), ExternalImageId: aws.String("Alice")}}},
		UnindexedFaces: []types.UnindexedFace{{}},
	}}
	r := NewRekognition(fake, "security-camera", 5, 70)

	res, err := r.IndexFace(context.Background(), testRef, "Alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Faces) != 1 || res.Faces[0].FaceID != "face-9" || res.Unindexed != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	in := fake.indexIn
	if aws.ToString(in.ExternalImageId) != "Alice" || aws.ToString(in.CollectionId) != "security-camera" {
		t.Errorf("unexpected input %+v", in)
	}
	if len(in.DetectionAttributes) != 1 || in.DetectionAttributes[0] != types.AttributeAll {
		t.Errorf("expected DetectionAttributes=[ALL], got %v", in.DetectionAttributes)
	}
}

func TestCalls_PropagateErrors(t *testing.T) {
	fake := &fakeRekognition{err: errors.New("AccessDenied")}
	r := NewRekognition(fake, "security-camera", 5, 70)
	ctx := context.Background()

	if _, err := r.DetectLabels(ctx, testRef); err == nil {
		t.Error("DetectLabels: expected error")
	}
	if _, err := r.DetectFaces(ctx, testRef); err == nil {
		t.Error("DetectFaces: expected error")
	}
	if _, err := r.RecognizeCelebrities(ctx, testRef); err == nil {
		t.Error("RecognizeCelebrities: expected error")
	}
	if _, err := r.SearchFaces(ctx, testRef); err == nil {
		t.Error("SearchFaces: expected error")
	}
	if _, err := r.IndexFace(ctx, testRef, "Bob"); err == nil {
		t.Error("IndexFace: expected error")
	}
}

func TestEnsureCollection(t *testing.T) {
	ctx := context.Background()

	if err := NewRekognition(&fakeRekognition{}, "c", 5, 70).EnsureCollection(ctx); err != nil {
		t.Errorf("create: unexpected error %v", err)
	}

	exists := &fakeRekognition{createErr: &types.ResourceAlreadyExistsException{Message: aws.String("exists")}}
	if err := NewRekognition(exists, "c", 5, 70).EnsureCollection(ctx); err != nil {
		t.Errorf("already exists should not be an error, got %v", err)
	}

	denied := &fakeRekognition{createErr: errors.New("AccessDenied")}
	if err := NewRekognition(denied, "c", 5, 70).EnsureCollection(ctx); err == nil {
		t.Error("expected error for other failures")
	}
}
