package imaging

const (
	glareBrightness   = 220.0
	glareFraction     = 0.25
	blurThreshold     = 8.0
	darkBrightness    = 50.0
	brightBrightness  = 230.0
	baseQuality       = 0.8
	exposurePenalty   = 0.1
	blurPenalty       = 0.2
	glarePenalty      = 0.1
	minOverallQuality = 0.5
)

// QualityMetrics summarises the brightness, sharpness and glare of one image.
type QualityMetrics struct {
	AverageBrightness float64 `json:"average_brightness"`
	Sharpness         float64 `json:"sharpness"`
	IsBlurred         bool    `json:"is_blurred"`
	HasGlare          bool    `json:"has_glare"`
	OverallQuality    float64 `json:"overall_quality"`
}

// AnalyzeQuality computes QualityMetrics for img. The result is a pure
// function of the pixel bytes. OverallQuality never drops below 0.5.
func AnalyzeQuality(img RawImage) QualityMetrics {
	pixels := img.PixelCount()
	if n := len(img.Pix) / 4; n < pixels {
		pixels = n
	}

	var totalBrightness float64
	brightPixels := 0
	for p := 0; p < pixels; p++ {
		b := brightnessAt(img.Pix, p*4)
		totalBrightness += b
		if b > glareBrightness {
			brightPixels++
		}
	}

	var avgBrightness, brightFraction float64
	if pixels > 0 {
		avgBrightness = totalBrightness / float64(pixels)
		brightFraction = float64(brightPixels) / float64(pixels)
	}

	sharpness := edgeSharpness(img)

	metrics := QualityMetrics{
		AverageBrightness: avgBrightness,
		Sharpness:         sharpness,
		IsBlurred:         sharpness < blurThreshold,
		HasGlare:          brightFraction > glareFraction,
	}

	quality := baseQuality
	if avgBrightness < darkBrightness || avgBrightness > brightBrightness {
		quality -= exposurePenalty
	}
	if metrics.IsBlurred {
		quality -= blurPenalty
	}
	if metrics.HasGlare {
		quality -= glarePenalty
	}
	if quality < minOverallQuality {
		quality = minOverallQuality
	}
	metrics.OverallQuality = quality

	return metrics
}

// edgeSharpness sums right and lower neighbour brightness differences over
// interior pixels and normalises by (width-1)*(height-1).
func edgeSharpness(img RawImage) float64 {
	w, h := img.Width, img.Height
	if w < 2 || h < 2 || len(img.Pix) < w*h*4 {
		return 0
	}

	var sum float64
	stride := w * 4
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			idx := (y*w + x) * 4
			current := brightnessAt(img.Pix, idx)
			right := brightnessAt(img.Pix, idx+4)
			below := brightnessAt(img.Pix, idx+stride)
			sum += abs(current-right) + abs(current-below)
		}
	}
	return sum / float64((w-1)*(h-1))
}

func brightnessAt(pix []byte, idx int) float64 {
	return float64(int(pix[idx])+int(pix[idx+1])+int(pix[idx+2])) / 3
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
