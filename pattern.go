package xvid

import (
	"context"
	"math"
	"time"
)

// PatternType selects the picture drawn by a PatternSource.
type PatternType int

const (
	PatternColorBars    PatternType = iota // SMPTE color bars
	PatternGradient                        // Horizontal gradient
	PatternCheckerboard                    // Checkerboard pattern
	PatternSolidColor                      // Solid color
	PatternNoise                           // Random noise
	PatternMovingBox                       // Moving box (animated)
)

func (p PatternType) String() string {
	switch p {
	case PatternColorBars:
		return "ColorBars"
	case PatternGradient:
		return "Gradient"
	case PatternCheckerboard:
		return "Checkerboard"
	case PatternSolidColor:
		return "SolidColor"
	case PatternNoise:
		return "Noise"
	case PatternMovingBox:
		return "MovingBox"
	default:
		return "Unknown"
	}
}

// PatternConfig configures a PatternSource.
type PatternConfig struct {
	Width     int         // Frame width, rounded up to even (default: 640)
	Height    int         // Frame height, rounded up to even (default: 480)
	FrameRate Fraction    // Frame rate for Run (default: 25/1)
	Pattern   PatternType // Pattern type (default: ColorBars)
	Animated  bool        // Scroll static patterns (MovingBox and Noise always animate)

	// For SolidColor pattern
	SolidR, SolidG, SolidB uint8

	// For Checkerboard pattern
	CheckerSize int // Size of each checker square (default: 32)
}

// PatternSource generates synthetic planar YUV 4:2:0 frames to feed an
// Encoder. It is not safe for concurrent use.
type PatternSource struct {
	config PatternConfig
	y      []byte
	u      []byte
	v      []byte
	frame  int
	rng    uint64
}

// NewPatternSource creates a PatternSource, filling in defaults.
func NewPatternSource(config PatternConfig) *PatternSource {
	if config.Width <= 0 {
		config.Width = 640
	}
	if config.Height <= 0 {
		config.Height = 480
	}
	config.Width += config.Width & 1
	config.Height += config.Height & 1
	if config.FrameRate.Numerator <= 0 || config.FrameRate.Denominator <= 0 {
		config.FrameRate = Fraction{25, 1}
	}
	if config.CheckerSize <= 0 {
		config.CheckerSize = 32
	}
	ySize := config.Width * config.Height
	return &PatternSource{
		config: config,
		y:      make([]byte, ySize),
		u:      make([]byte, ySize/4),
		v:      make([]byte, ySize/4),
		rng:    uint64(time.Now().UnixNano()) | 1,
	}
}

// Config returns the effective configuration.
func (s *PatternSource) Config() PatternConfig {
	return s.config
}

// Next draws the next frame. The returned Image uses ColorSpacePlanar and
// shares its planes with the source: it is overwritten by the next call.
func (s *PatternSource) Next() *Image {
	s.draw(s.frame)
	s.frame++
	w := s.config.Width
	return &Image{
		Colorspace: ColorSpacePlanar,
		Planes:     [][]byte{s.y, s.u, s.v},
		Strides:    []int{w, w / 2, w / 2},
	}
}

// Run calls fn with a new frame at the configured frame rate until ctx is
// done or fn returns an error.
func (s *PatternSource) Run(ctx context.Context, fn func(*Image) error) error {
	rate := s.config.FrameRate
	ticker := time.NewTicker(time.Duration(int64(time.Second) * int64(rate.Denominator) / int64(rate.Numerator)))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := fn(s.Next()); err != nil {
				return err
			}
		}
	}
}

func (s *PatternSource) draw(n int) {
	shift := 0
	if s.config.Animated {
		shift = 4 * n
	}
	switch s.config.Pattern {
	case PatternGradient:
		s.drawGradient(shift)
	case PatternCheckerboard:
		s.drawCheckerboard(shift)
	case PatternSolidColor:
		s.fill(rgbToYUV(s.config.SolidR, s.config.SolidG, s.config.SolidB))
	case PatternNoise:
		s.drawNoise()
	case PatternMovingBox:
		s.drawMovingBox(n)
	default:
		s.drawColorBars(shift)
	}
}

// SMPTE color bars (simplified 8-bar pattern)
var colorBarsRGB = [8][3]uint8{
	{192, 192, 192}, // White (75%)
	{192, 192, 0},   // Yellow
	{0, 192, 192},   // Cyan
	{0, 192, 0},     // Green
	{192, 0, 192},   // Magenta
	{192, 0, 0},     // Red
	{0, 0, 192},     // Blue
	{16, 16, 16},    // Black
}

func (s *PatternSource) drawColorBars(shift int) {
	w, h := s.config.Width, s.config.Height
	barWidth := max(w/8, 1)
	for x := 0; x < w; x++ {
		bar := min(((x+shift)%w)/barWidth, 7)
		rgb := colorBarsRGB[bar]
		y, u, v := rgbToYUV(rgb[0], rgb[1], rgb[2])
		for row := 0; row < h; row++ {
			s.y[row*w+x] = y
		}
		if x%2 == 0 {
			for row := 0; row < h/2; row++ {
				s.u[row*(w/2)+x/2] = u
				s.v[row*(w/2)+x/2] = v
			}
		}
	}
}

func (s *PatternSource) drawGradient(shift int) {
	w, h := s.config.Width, s.config.Height
	for row := 0; row < h; row++ {
		for x := 0; x < w; x++ {
			s.y[row*w+x] = uint8(((x + shift) % w) * 255 / w)
		}
	}
	s.neutralChroma()
}

func (s *PatternSource) drawCheckerboard(shift int) {
	w, h := s.config.Width, s.config.Height
	size := s.config.CheckerSize
	for row := 0; row < h; row++ {
		for x := 0; x < w; x++ {
			if ((x+shift)/size+row/size)%2 == 0 {
				s.y[row*w+x] = 235
			} else {
				s.y[row*w+x] = 16
			}
		}
	}
	s.neutralChroma()
}

func (s *PatternSource) drawNoise() {
	// xorshift64
	for i := range s.y {
		s.rng ^= s.rng << 13
		s.rng ^= s.rng >> 7
		s.rng ^= s.rng << 17
		s.y[i] = uint8(s.rng)
	}
	s.neutralChroma()
}

func (s *PatternSource) drawMovingBox(n int) {
	w, h := s.config.Width, s.config.Height
	s.fill(16, 128, 128)

	// the box moves in a circle
	boxSize := max(min(w, h)/5, 2)
	radius := float64(min(w, h)) / 4
	angle := float64(n) * 0.05
	boxX := w/2 + int(radius*math.Cos(angle)) - boxSize/2
	boxY := h/2 + int(radius*math.Sin(angle)) - boxSize/2

	for row := max(boxY, 0); row < min(boxY+boxSize, h); row++ {
		for x := max(boxX, 0); x < min(boxX+boxSize, w); x++ {
			s.y[row*w+x] = 235
		}
	}
}

func (s *PatternSource) fill(y, u, v uint8) {
	for i := range s.y {
		s.y[i] = y
	}
	for i := range s.u {
		s.u[i] = u
		s.v[i] = v
	}
}

func (s *PatternSource) neutralChroma() {
	for i := range s.u {
		s.u[i] = 128
		s.v[i] = 128
	}
}

// rgbToYUV converts RGB to studio swing YUV (BT.601).
func rgbToYUV(r, g, b uint8) (y, u, v uint8) {
	yf := 16.0 + 65.481*float64(r)/255.0 + 128.553*float64(g)/255.0 + 24.966*float64(b)/255.0
	uf := 128.0 - 37.797*float64(r)/255.0 - 74.203*float64(g)/255.0 + 112.0*float64(b)/255.0
	vf := 128.0 + 112.0*float64(r)/255.0 - 93.786*float64(g)/255.0 - 18.214*float64(b)/255.0

	y = uint8(math.Round(min(max(yf, 16), 235)))
	u = uint8(math.Round(min(max(uf, 16), 240)))
	v = uint8(math.Round(min(max(vf, 16), 240)))
	return
}
