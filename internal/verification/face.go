package verification

import (
	"fmt"

	"github.com/example/verinex/internal/imaging"
)

const (
	// The analyzer never reports quality below 0.5, so face presence always
	// passes and liveness fails only at the floor itself.
	facePresenceThreshold = 0.3
	livenessThreshold     = 0.5
)

// Image names used in NoFaceDetectedError.
const (
	ImageDocument = "document"
	ImageSelfie   = "selfie"
)

// FacePresence is the face detection stand-in for one image.
type FacePresence struct {
	FacePresent         bool    `json:"face_present"`
	Quality             float64 `json:"quality"`
	DetectionConfidence float64 `json:"detection_confidence"`
}

// EstimateFace derives face presence from the image quality.
func EstimateFace(rng Rand, img imaging.RawImage) FacePresence {
	quality := imaging.AnalyzeQuality(img).OverallQuality
	return FacePresence{
		FacePresent:         quality > facePresenceThreshold,
		Quality:             quality,
		DetectionConfidence: uniform(rng, 0.8, 0.95),
	}
}

// NoFaceDetectedError reports which image had no detectable face.
type NoFaceDetectedError struct {
	Image string
}

func (e *NoFaceDetectedError) Error() string {
	if e.Image == ImageDocument {
		return "could not verify identity in document"
	}
	if e.Image == ImageSelfie {
		return "could not verify identity in photo"
	}
	return fmt.Sprintf("no face detected in %s image", e.Image)
}
