package xvid

import "fmt"

// Version is a semver (semantic versioning) version.
type Version struct {
	version int32
}

// Major returns the major number part of the version: 1.2.3 returns 1.
func (v Version) Major() int {
	return int(v.version>>16) & 0xff
}

// Minor returns the minor number part of the version: 1.2.3 returns 2.
func (v Version) Minor() int {
	return int(v.version>>8) & 0xff
}

// Patch returns the patch number part of the version: 1.2.3 returns 3.
func (v Version) Patch() int {
	return int(v.version) & 0xff
}

// String returns a readable string representation of the version, e.g. 1.2.3.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}

// QuantizerRange specifies the allowed range of a quantization parameter.
type QuantizerRange struct {
	// minimum quantizer value, inclusive, 0 defaults to 2, must be between 1 and 31
	Min int `yaml:"min"`
	// maximum quantizer value, inclusive, 0 defaults to 31, must be between 1 and 31
	Max int `yaml:"max"`
}

// Fraction is an exact integer fraction to represent a decimal number
// without precision loss.
type Fraction struct {
	Numerator int
	// must not be 0
	Denominator int
}

// Float returns the actual value of a fraction, which is Numerator / Denominator.
func (f Fraction) Float() float32 {
	return float32(f.Numerator) / float32(f.Denominator)
}

// PixelAspectRatio is a frame pixel aspect ratio (PAR), given as an integer
// fraction of a pixel width and height. There are standard ratios, defined
// below, and user-defined ratios, which are clamped to [1, 255] natively.
type PixelAspectRatio struct {
	// pixel width ratio
	Width int
	// pixel height ratio
	Height int
	value  int32
}

var (
	// square pixel
	PixelAspectRatio11VGA = PixelAspectRatio{1, 1, par11VGA}
	// 12:11 pixel (seldom used in 4:3 pal 625-line)
	PixelAspectRatio43PAL = PixelAspectRatio{12, 11, par43PAL}
	// 10:11 pixel (seldom used in 4:3 pal 525-line)
	PixelAspectRatio43NTSC = PixelAspectRatio{10, 11, par43NTSC}
	// 16:11 pixel (seldom used in 16:9 pal 625-line)
	PixelAspectRatio169PAL = PixelAspectRatio{16, 11, par169PAL}
	// 40:33 pixel (seldom used in 16:9 ntsc 525-line)
	PixelAspectRatio169NTSC = PixelAspectRatio{40, 33, par169NTSC}
)

// NewPixelAspectRatio returns a user-defined pixel aspect ratio.
func NewPixelAspectRatio(width int, height int) PixelAspectRatio {
	return PixelAspectRatio{
		Width:  width,
		Height: height,
		value:  parExt,
	}
}

// nativeValue returns the native code, defaulting to square pixels for the
// zero value.
func (p PixelAspectRatio) nativeValue() int32 {
	if p.value == 0 {
		return par11VGA
	}
	return p.value
}
