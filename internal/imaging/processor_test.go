package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, c color.RGBA, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreprocess_ShapeAndLayout(t *testing.T) {
	p := NewProcessor(8, "standard")

	tensor, err := p.Preprocess(encodePNG(t, color.RGBA{R: 255, A: 255}, 32, 32))
	require.NoError(t, err)
	require.Len(t, tensor, 3*8*8)

	// Pure red image: R plane ~1, G and B planes ~0.
	plane := 8 * 8
	require.InDelta(t, 1.0, tensor[0], 0.02)
	require.InDelta(t, 0.0, tensor[plane], 0.02)
	require.InDelta(t, 0.0, tensor[2*plane], 0.02)
}

func TestPreprocess_StandardRange(t *testing.T) {
	p := NewProcessor(4, "standard")
	tensor, err := p.Preprocess(encodePNG(t, color.RGBA{R: 128, G: 128, B: 128, A: 255}, 16, 16))
	require.NoError(t, err)
	for _, v := range tensor {
		require.GreaterOrEqual(t, v, float32(0))
		require.LessOrEqual(t, v, float32(1))
	}
	require.InDelta(t, 128.0/255.0, tensor[0], 0.02)
}

func TestPreprocess_CenteredRange(t *testing.T) {
	p := NewProcessor(4, "centered")
	tensor, err := p.Preprocess(encodePNG(t, color.RGBA{A: 255}, 16, 16))
	require.NoError(t, err)
	// Black pixels map to -1.
	require.InDelta(t, -1.0, tensor[0], 0.02)
}

func TestPreprocess_ImagenetNormalization(t *testing.T) {
	p := NewProcessor(4, "imagenet")
	tensor, err := p.Preprocess(encodePNG(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, 16, 16))
	require.NoError(t, err)
	// White pixel, red channel: (1 - 0.485) / 0.229.
	require.InDelta(t, (1.0-0.485)/0.229, tensor[0], 0.05)
}

func TestPreprocess_InvalidImage(t *testing.T) {
	p := NewProcessor(8, "standard")
	_, err := p.Preprocess([]byte("definitely not an image"))
	require.Error(t, err)
}

func TestNewProcessor_UnknownNormalizationFallsBack(t *testing.T) {
	p := NewProcessor(8, "quantile")
	require.Equal(t, "standard", p.Normalization)
}
