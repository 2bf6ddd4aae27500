package main

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRect(t *testing.T) {
	rect, err := parseRect("10, 20,30,40")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 20, 40, 60), rect)

	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "0,0,0,5", "0,0,5,-1"} {
		_, err := parseRect(bad)
		assert.Error(t, err, bad)
	}
}

func TestScoreLine(t *testing.T) {
	assert.Equal(t, "size changed, no metrics", scoreLine(nil))
	assert.Equal(t, "psnr=inf ssim=1.0000", scoreLine(map[string]float64{"ssim": 1, "psnr": math.Inf(1)}))
}
