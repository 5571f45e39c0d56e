package ads

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaption(t *testing.T) {
	assert.Equal(t, "Bike\nRed, size M\nPrice: 150",
		Caption(Fields{Title: "Bike", Description: "Red, size M", Price: 150}))
	assert.Equal(t, "Lamp\nPrice: 12.5",
		Caption(Fields{Title: "Lamp", Price: 12.5}))
}

func TestCaptionIsBounded(t *testing.T) {
	c := Caption(Fields{Title: "T", Description: strings.Repeat("x", 2000), Price: 1})
	assert.Equal(t, 1024, len([]rune(c)))
}

func TestPublished(t *testing.T) {
	assert.False(t, Ad{}.Published())
	assert.True(t, Ad{PostRef: "17"}.Published())
}
