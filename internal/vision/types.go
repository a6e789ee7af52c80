// Package vision defines the result types of the remote image analysis calls
// and an Amazon Rekognition implementation of them.
//
// JSON field names follow the Rekognition response shapes so the persisted
// last-seen record stays readable by existing consumers.
package vision

// ImageRef locates an uploaded image in object storage.
type ImageRef struct {
	Bucket string `json:"Bucket"`
	Key    string `json:"Key"`
}

// BoundingBox is expressed as ratios of the image dimensions.
type BoundingBox struct {
	Width  float32 `json:"Width"`
	Height float32 `json:"Height"`
	Left   float32 `json:"Left"`
	Top    float32 `json:"Top"`
}

// Label is one detected object or scene label.
type Label struct {
	Name       string   `json:"Name"`
	Confidence float32  `json:"Confidence"`
	Parents    []string `json:"Parents,omitempty"`
	Instances  int      `json:"Instances,omitempty"`
}

// AgeRange is the estimated age bracket of a face.
type AgeRange struct {
	Low  int32 `json:"Low"`
	High int32 `json:"High"`
}

// Attribute is a classified attribute with its confidence.
type Attribute struct {
	Value      string  `json:"Value"`
	Confidence float32 `json:"Confidence"`
}

// Pose is the face orientation in degrees.
type Pose struct {
	Roll  float32 `json:"Roll"`
	Yaw   float32 `json:"Yaw"`
	Pitch float32 `json:"Pitch"`
}

// Quality reports brightness and sharpness of the face crop.
type Quality struct {
	Brightness float32 `json:"Brightness"`
	Sharpness  float32 `json:"Sharpness"`
}

// FaceDetail is one detected face with the full attribute set.
type FaceDetail struct {
	BoundingBox *BoundingBox `json:"BoundingBox,omitempty"`
	Confidence  float32      `json:"Confidence"`
	AgeRange    *AgeRange    `json:"AgeRange,omitempty"`
	Gender      *Attribute   `json:"Gender,omitempty"`
	Emotions    []Attribute  `json:"Emotions,omitempty"`
	Pose        *Pose        `json:"Pose,omitempty"`
	Quality     *Quality     `json:"Quality,omitempty"`
}

// Celebrity is a recognized public figure.
type Celebrity struct {
	ID              string       `json:"Id"`
	Name            string       `json:"Name"`
	MatchConfidence float32      `json:"MatchConfidence"`
	URLs            []string     `json:"Urls,omitempty"`
	BoundingBox     *BoundingBox `json:"BoundingBox,omitempty"`
}

// Face is a face stored in a collection.
type Face struct {
	FaceID          string       `json:"FaceId"`
	ImageID         string       `json:"ImageId,omitempty"`
	ExternalImageID string       `json:"ExternalImageId,omitempty"`
	Confidence      float32      `json:"Confidence"`
	BoundingBox     *BoundingBox `json:"BoundingBox,omitempty"`
}

// FaceMatch is a collection face similar to a face in the searched image.
type FaceMatch struct {
	Similarity float32 `json:"Similarity"`
	Face       Face    `json:"Face"`
}

// IndexResult is the outcome of enrolling an image into a collection.
type IndexResult struct {
	Faces      []Face `json:"FaceRecords"`
	Unindexed  int    `json:"UnindexedFaces"`
	ExternalID string `json:"ExternalImageId"`
}
