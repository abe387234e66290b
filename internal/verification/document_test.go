package verification

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDNICheckLetter(t *testing.T) {
	assert.Equal(t, byte('T'), DNICheckLetter(0))
	assert.Equal(t, byte('R'), DNICheckLetter(1))
	assert.Equal(t, byte('E'), DNICheckLetter(22))
	assert.Equal(t, byte('T'), DNICheckLetter(23))
	assert.Equal(t, byte('Z'), DNICheckLetter(12345678))
}

func TestExtractDocumentNumbers(t *testing.T) {
	tests := []struct {
		docType DocumentType
		draw    int
		want    string
	}{
		{DocumentDNI, 1, "00000001R"},
		{DocumentDNI, 12345678, "12345678Z"},
		{DocumentPassport, 42, "ESP000042"},
		{DocumentLicense, 42, "ES00000042"},
		{DocumentResidency, 7, "ES00000007"},
	}

	for _, tt := range tests {
		t.Run(string(tt.docType), func(t *testing.T) {
			rng := &scriptedRand{floats: []float64{0.5}, ints: []int{tt.draw}}
			got := ExtractDocument(rng, solid(4, 4, 128), tt.docType, "Ana Garcia")
			assert.Equal(t, tt.want, got.DocumentNumber())
		})
	}
}

func TestExtractDocumentWithProvidedName(t *testing.T) {
	rng := &scriptedRand{floats: []float64{0.5}, ints: []int{1}}
	got := ExtractDocument(rng, solid(4, 4, 128), DocumentDNI, "  Ana Garcia ")

	assert.Equal(t, "ANA GARCIA", got.Name())
	assert.Equal(t, NameMatch, got.NameMatchStatus)
	assert.InDelta(t, 0.95, got.Confidence, 1e-9)
	require.NotNil(t, got.ExtractedCountry)
	assert.Equal(t, "SPAIN", *got.ExtractedCountry)
	assert.Equal(t, "DNI - ANA GARCIA - SPAIN - 00000001R", got.RawText)
	assert.Empty(t, got.Error)
}

func TestExtractDocumentConfidenceBoostIsCapped(t *testing.T) {
	rng := &scriptedRand{floats: []float64{0.99}}
	got := ExtractDocument(rng, solid(4, 4, 128), DocumentPassport, "Ana")
	assert.InDelta(t, 0.98, got.Confidence, 1e-12)
}

func TestExtractDocumentWithoutName(t *testing.T) {
	rng := &scriptedRand{floats: []float64{0.2}, ints: []int{2, 5}}
	got := ExtractDocument(rng, solid(4, 4, 128), DocumentLicense, "   ")

	assert.Equal(t, "GONZALEZ FERNANDEZ", got.Name())
	assert.Equal(t, NameNotProvided, got.NameMatchStatus)
	assert.InDelta(t, 0.87, got.Confidence, 1e-9)
	assert.Equal(t, "ES00000005", got.DocumentNumber())
}

func TestExtractDocumentConfidenceRange(t *testing.T) {
	rng := NewRand(99)
	for i := 0; i < 200; i++ {
		got := ExtractDocument(rng, solid(3, 3, 90), DocumentDNI, "")
		assert.GreaterOrEqual(t, got.Confidence, 0.85)
		assert.Less(t, got.Confidence, 0.95)
		assert.Len(t, got.DocumentNumber(), 9)
		assert.Equal(t, DNICheckLetter(atoi(t, got.DocumentNumber()[:8])), got.DocumentNumber()[8])
	}
}

func TestFailedExtraction(t *testing.T) {
	got := FailedExtraction(errors.New("image decode failure: bad header"))
	assert.Zero(t, got.Confidence)
	assert.Nil(t, got.ExtractedName)
	assert.Nil(t, got.ExtractedDocumentNumber)
	assert.Equal(t, "image decode failure: bad header", got.Error)
}

func TestParseDocumentType(t *testing.T) {
	dt, err := ParseDocumentType(" Passport ")
	require.NoError(t, err)
	assert.Equal(t, DocumentPassport, dt)
	assert.False(t, dt.RequiresBackImage())
	assert.True(t, DocumentDNI.RequiresBackImage())

	_, err = ParseDocumentType("library-card")
	assert.Error(t, err)
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	n := 0
	for _, c := range s {
		require.True(t, c >= '0' && c <= '9', "non digit in %q", s)
		n = n*10 + int(c-'0')
	}
	return n
}
