package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"

	"github.com/nfnt/resize"
)

// ImageNet channel statistics, used by the "imagenet" normalization scheme.
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Processor converts encoded images into the flat float32 tensor the models
// expect: RGB, planar CHW layout, batch dimension of one.
type Processor struct {
	Size          int
	Normalization string
}

func NewProcessor(size int, normalization string) *Processor {
	switch normalization {
	case "standard", "imagenet", "centered":
	default:
		log.Printf("warning: unknown normalization %q, using standard", normalization)
		normalization = "standard"
	}
	return &Processor{Size: size, Normalization: normalization}
}

// Preprocess decodes, resizes and normalizes raw image bytes. The returned
// slice has length 3*Size*Size.
func (p *Processor) Preprocess(data []byte) ([]float32, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return p.fromImage(img), nil
}

func (p *Processor) fromImage(img image.Image) []float32 {
	target := uint(p.Size)
	resized := resize.Resize(target, target, img, resize.Lanczos3)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	out := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			rNorm := float32(r) / 65535.0
			gNorm := float32(g) / 65535.0
			bNorm := float32(b) / 65535.0

			i := y*width + x
			out[i] = p.normalize(rNorm, 0)
			out[plane+i] = p.normalize(gNorm, 1)
			out[2*plane+i] = p.normalize(bNorm, 2)
		}
	}

	return out
}

// normalize maps a 0-1 channel value into the configured scheme.
func (p *Processor) normalize(v float32, channel int) float32 {
	switch p.Normalization {
	case "imagenet":
		return (v - imagenetMean[channel]) / imagenetStd[channel]
	case "centered":
		return v*2.0 - 1.0
	default: // standard, already 0-1
		return v
	}
}
