package verification

import (
	"fmt"
	"strings"

	"github.com/example/verinex/internal/imaging"
)

// DocumentType identifies the kind of identity document uploaded.
type DocumentType string

const (
	DocumentDNI       DocumentType = "dni"
	DocumentPassport  DocumentType = "passport"
	DocumentLicense   DocumentType = "license"
	DocumentResidency DocumentType = "residency"
)

// ParseDocumentType validates a user supplied document type.
func ParseDocumentType(s string) (DocumentType, error) {
	switch t := DocumentType(strings.ToLower(strings.TrimSpace(s))); t {
	case DocumentDNI, DocumentPassport, DocumentLicense, DocumentResidency:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported document type %q", s)
	}
}

// RequiresBackImage reports whether both sides of the document must be uploaded.
func (t DocumentType) RequiresBackImage() bool {
	return t != DocumentPassport
}

// NameMatchStatus compares the extracted name with the name the user typed.
type NameMatchStatus string

const (
	NameMatch       NameMatchStatus = "match"
	NameNoMatch     NameMatchStatus = "no_match"
	NameNotProvided NameMatchStatus = "not_provided"
)

const (
	extractedCountry = "SPAIN"
	dniLetters       = "TRWAGMYFPDXBNJZSQVHLCKE"
	passportPrefix   = "ESP"
	otherDocPrefix   = "ES"
)

var placeholderNames = []string{
	"GARCIA MARTINEZ",
	"RODRIGUEZ LOPEZ",
	"GONZALEZ FERNANDEZ",
	"MARTIN SANCHEZ",
}

// DocumentExtraction is the simulated OCR output for one document image.
type DocumentExtraction struct {
	ExtractedName           *string                `json:"extracted_name"`
	ExtractedCountry        *string                `json:"extracted_country"`
	ExtractedDocumentNumber *string                `json:"extracted_document_number"`
	Confidence              float64                `json:"confidence"`
	NameMatchStatus         NameMatchStatus        `json:"name_match"`
	RawText                 string                 `json:"raw_text,omitempty"`
	Quality                 imaging.QualityMetrics `json:"quality"`
	Error                   string                 `json:"error,omitempty"`
}

// Name returns the extracted name or "" when none was produced.
func (d DocumentExtraction) Name() string {
	if d.ExtractedName == nil {
		return ""
	}
	return *d.ExtractedName
}

// DocumentNumber returns the extracted document number or "".
func (d DocumentExtraction) DocumentNumber() string {
	if d.ExtractedDocumentNumber == nil {
		return ""
	}
	return *d.ExtractedDocumentNumber
}

// ExtractDocument fabricates document fields for img. Quality is measured
// and reported but does not change the confidence draw.
func ExtractDocument(rng Rand, img imaging.RawImage, docType DocumentType, userName string) DocumentExtraction {
	quality := imaging.AnalyzeQuality(img)

	confidence := uniform(rng, 0.85, 0.95)
	provided := strings.TrimSpace(userName)

	var name string
	if provided != "" {
		name = strings.ToUpper(provided)
		confidence = min(0.98, confidence+0.05)
	} else {
		name = placeholderNames[rng.IntN(len(placeholderNames))]
	}

	number := generateDocumentNumber(rng, docType)
	country := extractedCountry

	status := NameNotProvided
	if provided != "" {
		status = NameNoMatch
		if strings.Contains(strings.ToLower(name), strings.ToLower(provided)) {
			status = NameMatch
		}
	}

	return DocumentExtraction{
		ExtractedName:           &name,
		ExtractedCountry:        &country,
		ExtractedDocumentNumber: &number,
		Confidence:              confidence,
		NameMatchStatus:         status,
		RawText:                 fmt.Sprintf("%s - %s - %s - %s", strings.ToUpper(string(docType)), name, country, number),
		Quality:                 quality,
	}
}

// FailedExtraction is the zero-confidence result substituted when the
// document image cannot be decoded.
func FailedExtraction(err error) DocumentExtraction {
	msg := "document extraction failed"
	if err != nil {
		msg = err.Error()
	}
	return DocumentExtraction{
		Confidence:      0,
		NameMatchStatus: NameNotProvided,
		Error:           msg,
	}
}

// DNICheckLetter returns the control letter for a DNI number.
func DNICheckLetter(number int) byte {
	return dniLetters[number%len(dniLetters)]
}

func generateDocumentNumber(rng Rand, docType DocumentType) string {
	switch docType {
	case DocumentDNI:
		n := rng.IntN(99999999)
		return fmt.Sprintf("%08d%c", n, DNICheckLetter(n))
	case DocumentPassport:
		return fmt.Sprintf("%s%06d", passportPrefix, rng.IntN(999999))
	default:
		return fmt.Sprintf("%s%08d", otherDocPrefix, rng.IntN(99999999))
	}
}
