package verification

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/verinex/internal/imaging"
)

const (
	maxMatchPercentage  = 96.0
	highQualityCutoff   = 0.7
	qualityMatchBonus   = 3.0
	nameMatchBonus      = 2.0
	livenessPassedScore = 0.85
	livenessFailedScore = 0.45
)

// BiometricResult is the simulated document-vs-selfie comparison.
type BiometricResult struct {
	MatchPercentage float64 `json:"match_percentage"`
	Confidence      float64 `json:"confidence"`
	LivenessPassed  bool    `json:"liveness_passed"`
	LivenessScore   float64 `json:"liveness_score"`
	AgeEstimate     float64 `json:"age_estimate,omitempty"`
	QualityScore    float64 `json:"quality_score"`
	Error           string  `json:"error,omitempty"`
}

// MatchBiometrics compares the face in the document with the selfie. It
// fails with *NoFaceDetectedError when either image has no face.
func MatchBiometrics(rng Rand, document, selfie imaging.RawImage, userName string) (BiometricResult, error) {
	docFace := EstimateFace(rng, document)
	selfieFace := EstimateFace(rng, selfie)

	if !docFace.FacePresent {
		return BiometricResult{}, &NoFaceDetectedError{Image: ImageDocument}
	}
	if !selfieFace.FacePresent {
		return BiometricResult{}, &NoFaceDetectedError{Image: ImageSelfie}
	}

	match := uniform(rng, 78, 93)
	if docFace.Quality > highQualityCutoff && selfieFace.Quality > highQualityCutoff {
		match += qualityMatchBonus
	}
	if strings.TrimSpace(userName) != "" {
		match += nameMatchBonus
	}
	match = min(maxMatchPercentage, roundPercentage(match))

	liveness := selfieFace.Quality > livenessThreshold
	livenessScore := livenessFailedScore
	if liveness {
		livenessScore = livenessPassedScore
	}

	return BiometricResult{
		MatchPercentage: match,
		Confidence:      uniform(rng, 0.85, 0.95),
		LivenessPassed:  liveness,
		LivenessScore:   livenessScore,
		AgeEstimate:     uniform(rng, 30, 45),
		QualityScore:    (docFace.Quality + selfieFace.Quality) / 2,
	}, nil
}

// FailedBiometric is the zero-confidence result substituted when either
// image cannot be decoded or has no face.
func FailedBiometric(err error) BiometricResult {
	msg := "biometric verification failed"
	if err != nil {
		msg = err.Error()
	}
	return BiometricResult{
		Error: msg,
	}
}

func roundPercentage(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
