package datastore

import (
	"testing"

	"github.com/pavewatch/pavewatch-go/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefectTypeCanonicalOrder(t *testing.T) {
	types := DefectTypes()
	require.Len(t, types, 4)
	assert.Equal(t, DefectPothole, types[0], "pothole leads the canonical order")
	assert.Equal(t, DefectMarking, types[3])

	for i, d := range types {
		assert.True(t, d.Valid())
		assert.Equal(t, i, d.CanonicalRank())
	}
	assert.False(t, DefectType("crack").Valid())
	assert.Equal(t, -1, DefectType("crack").CanonicalRank())
}

func TestSeverityRank(t *testing.T) {
	assert.Equal(t, 1, SeverityLow.Rank())
	assert.Equal(t, 2, SeverityMedium.Rank())
	assert.Equal(t, 3, SeverityHigh.Rank())
	assert.Equal(t, 0, Severity("critical").Rank())
	assert.False(t, Severity("critical").Valid())
}

func TestBBoxArea(t *testing.T) {
	assert.InDelta(t, 5000.0, BBox{X: 10, Y: 10, Width: 100, Height: 50}.Area(), 1e-9)
	assert.Zero(t, BBox{Width: -10, Height: 50}.Area(), "degenerate boxes have zero area")
	assert.Zero(t, BBox{}.Area())
}

func TestDetectionValidate(t *testing.T) {
	valid := Detection{
		DefectType: DefectPothole,
		Severity:   SeverityHigh,
		Confidence: 0.9,
		Extent:     1,
	}
	require.NoError(t, valid.Validate(0))

	tests := []struct {
		name   string
		mutate func(*Detection)
	}{
		{"unknown defect type", func(d *Detection) { d.DefectType = "sinkhole" }},
		{"unknown severity", func(d *Detection) { d.Severity = "extreme" }},
		{"confidence above one", func(d *Detection) { d.Confidence = 1.2 }},
		{"confidence negative", func(d *Detection) { d.Confidence = -0.1 }},
		{"negative extent", func(d *Detection) { d.Extent = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			err := d.Validate(3)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestChatMessageValidate(t *testing.T) {
	valid := ChatMessage{
		AssessmentID: 1,
		SessionID:    "s-1",
		Role:         RoleUser,
		Content:      "how many potholes?",
	}
	require.NoError(t, valid.Validate())

	missingRef := valid
	missingRef.AssessmentID = 0
	assert.Error(t, missingRef.Validate())

	badRole := valid
	badRole.Role = "system"
	assert.Error(t, badRole.Validate())

	empty := valid
	empty.Content = ""
	assert.Error(t, empty.Validate())
}
