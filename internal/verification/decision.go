package verification

// Verdict is the automated outcome of a verification attempt.
type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictRejected Verdict = "rejected"
)

// Issue messages, in the order the decision engine emits them.
const (
	IssueDocumentQuality   = "document quality could be improved"
	IssueLivenessPending   = "authenticity verification pending"
	IssueBiometricMismatch = "biometric features do not match sufficiently"
	IssueRecommendReview   = "verification approved with recommended review"
)

const (
	documentWeight        = 0.4
	biometricWeight       = 0.6
	rejectScore           = 0.4
	reviewScore           = 0.6
	rejectMatch           = 45.0
	mismatchMatch         = 50.0
	lowDocumentScore      = 0.5
	minReportedConfidence = 0.6
)

// Decision is the verdict plus the issues found along the way.
type Decision struct {
	Verdict    Verdict  `json:"verdict"`
	Confidence float64  `json:"confidence"`
	Issues     []string `json:"issues"`
}

// MakeDecision combines document confidence and biometric match into a
// verdict. Rejection requires score < 0.4 or match < 45; everything else
// is approved. The reported confidence is never below 0.6.
func MakeDecision(doc DocumentExtraction, bio BiometricResult) Decision {
	issues := []string{}

	docScore := doc.Confidence
	bioScore := bio.MatchPercentage / 100
	score := float64(docScore*documentWeight) + float64(bioScore*biometricWeight)

	if docScore < lowDocumentScore {
		issues = append(issues, IssueDocumentQuality)
	}
	if !bio.LivenessPassed {
		issues = append(issues, IssueLivenessPending)
	}
	if bio.MatchPercentage < mismatchMatch {
		issues = append(issues, IssueBiometricMismatch)
	}

	verdict := VerdictApproved
	if score < rejectScore || bio.MatchPercentage < rejectMatch {
		verdict = VerdictRejected
	} else if score < reviewScore {
		issues = append(issues, IssueRecommendReview)
	}

	return Decision{
		Verdict:    verdict,
		Confidence: max(minReportedConfidence, score),
		Issues:     issues,
	}
}
