package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	rec := ReelRecord{ID: "r1", MediaURL: "https://cdn.example.com/r1.mp4"}
	require.NoError(t, rec.Validate())

	rec = ReelRecord{MediaURL: "https://cdn.example.com/r1.mp4"}
	assert.Error(t, rec.Validate())

	rec = ReelRecord{ID: "r1", MediaURL: "  "}
	assert.Error(t, rec.Validate())
}

func TestNormalizeComposesNFC(t *testing.T) {
	// 'e' followed by COMBINING ACUTE ACCENT must collapse to the precomposed rune.
	decomposed := "Cafe\u0301"
	composed := "Caf\u00e9"
	rec := ReelRecord{
		ID:        "r1",
		MediaURL:  "https://cdn.example.com/r1.mp4",
		Caption:   "  " + decomposed + "  ",
		Owner:     Owner{ID: "u1", DisplayName: decomposed},
		Products:  []ProductRef{{ID: "p1", Name: decomposed}},
		CreatedAt: time.Now(),
	}

	rec.Normalize()

	assert.Equal(t, composed, rec.Caption)
	assert.Equal(t, composed, rec.Owner.DisplayName)
	assert.Equal(t, composed, rec.Products[0].Name)
}
