package crisis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass/internal/domain"
)

func TestClassifyCleanText(t *testing.T) {
	d := NewDetector(DefaultTerms())

	assert.Empty(t, d.Classify("can you help me plan groceries for the week?"))
	assert.Empty(t, d.Classify(""))
	assert.Empty(t, d.Classify("   "))
}

func TestClassifySuicideTerms(t *testing.T) {
	d := NewDetector(DefaultTerms())

	detections := d.Classify("I don't want to live anymore")
	require.Len(t, detections, 1)
	assert.Equal(t, domain.CrisisSuicide, detections[0].Category)
	assert.Equal(t, domain.SeverityHigh, detections[0].Severity)
	assert.Equal(t, []string{"don't want to live"}, detections[0].Terms)
}

func TestClassifyFoldsCurlyApostrophes(t *testing.T) {
	d := NewDetector(DefaultTerms())

	// Phone keyboards substitute U+2019 for the straight apostrophe.
	detections := d.Classify("I don’t want to live anymore")
	require.Len(t, detections, 1)
	assert.Equal(t, domain.CrisisSuicide, detections[0].Category)
	assert.Equal(t, []string{"don't want to live"}, detections[0].Terms)
}

func TestClassifyIsCaseAndWhitespaceInsensitive(t *testing.T) {
	d := NewDetector(DefaultTerms())

	a := d.Classify("I WANT TO DIE")
	b := d.Classify("i  want   to die")
	require.Len(t, a, 1)
	assert.Equal(t, a, b)
}

func TestClassifyMultipleCategoriesCoFire(t *testing.T) {
	d := NewDetector(DefaultTerms())

	detections := d.Classify("I've been cutting myself and he keeps hitting me")
	require.Len(t, detections, 2)

	categories := map[domain.CrisisCategory]domain.Severity{}
	for _, det := range detections {
		categories[det.Category] = det.Severity
	}
	assert.Equal(t, domain.SeverityHigh, categories[domain.CrisisSelfHarm])
	assert.Equal(t, domain.SeverityElevated, categories[domain.CrisisAbuse])
}

func TestClassifyElevatedDoesNotOverride(t *testing.T) {
	d := NewDetector(DefaultTerms())

	detections := d.Classify("I have violent thoughts sometimes")
	require.Len(t, detections, 1)
	assert.Equal(t, domain.CrisisViolence, detections[0].Category)
	assert.False(t, domain.HighSeverity(detections))
}

// Classification must be reproducible: same text and term-list version,
// same result.
func TestClassifyDeterministic(t *testing.T) {
	d := NewDetector(DefaultTerms())

	const text = "some days I feel like ending it all, I'm afraid of going home"
	first := d.Classify(text)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, d.Classify(text))
	}
}

func TestWordBoundariesLimitFalsePositives(t *testing.T) {
	d := NewDetector(DefaultTerms())

	// "suicide" inside another word must not fire; matching is permissive but
	// still word-bounded.
	assert.Empty(t, d.Classify("the suicidempire brand"))
	assert.NotEmpty(t, d.Classify("thinking about suicide"))
}

func TestVersionExposed(t *testing.T) {
	d := NewDetector(DefaultTerms())
	assert.NotEmpty(t, d.Version())
}
