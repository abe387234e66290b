package verification

import "github.com/example/verinex/internal/imaging"

// scriptedRand replays fixed draws and falls back to zero when exhausted.
type scriptedRand struct {
	floats []float64
	ints   []int
}

func (s *scriptedRand) Float64() float64 {
	if len(s.floats) == 0 {
		return 0
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedRand) IntN(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	return v % n
}

func solid(w, h int, v byte) imaging.RawImage {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = v, v, v, 255
	}
	return imaging.RawImage{Width: w, Height: h, Pix: pix}
}

func checker(w, h int) imaging.RawImage {
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				i := (y*w + x) * 4
				pix[i], pix[i+1], pix[i+2] = 255, 255, 255
			}
			pix[(y*w+x)*4+3] = 255
		}
	}
	return imaging.RawImage{Width: w, Height: h, Pix: pix}
}
