package xvid

import (
	"fmt"
	"runtime"
	"unsafe"
)

// Native color space codes.
const (
	cspPlanar   int32 = 1 << 0
	cspI420     int32 = 1 << 1
	cspYV12     int32 = 1 << 2
	cspYUY2     int32 = 1 << 3
	cspUYVY     int32 = 1 << 4
	cspYVYU     int32 = 1 << 5
	cspBGRA     int32 = 1 << 6
	cspABGR     int32 = 1 << 7
	cspRGBA     int32 = 1 << 8
	cspBGR      int32 = 1 << 9
	cspRGB555   int32 = 1 << 10
	cspRGB565   int32 = 1 << 11
	cspInternal int32 = 1 << 13
	cspNull     int32 = 1 << 14
	cspARGB     int32 = 1 << 15
	cspRGB      int32 = 1 << 16
)

// planeShape describes the geometry of one image plane relative to the
// frame: how many bits a pixel takes along a row, and how many plane rows
// there are per frame row.
type planeShape struct {
	rowBits int
	rowsNum int
	rowsDen int
}

func (p planeShape) rowBytes(width int) int {
	return (width*p.rowBits + 7) / 8
}

func (p planeShape) rows(height int) int {
	return (height*p.rowsNum + p.rowsDen - 1) / p.rowsDen
}

// minLen is the smallest buffer holding the plane with the given stride.
func (p planeShape) minLen(width, height, stride int) int {
	rows := p.rows(height)
	if rows == 0 {
		return 0
	}
	return stride*(rows-1) + p.rowBytes(width)
}

var (
	shapeLuma   = planeShape{8, 1, 1}
	shapeChroma = planeShape{4, 1, 2}
	shape420    = planeShape{8, 3, 2}
	shape16     = planeShape{16, 1, 1}
	shape24     = planeShape{24, 1, 1}
	shape32     = planeShape{32, 1, 1}
)

// ColorSpace is the color space of an Image.
type ColorSpace struct {
	value int32
	// count of planes
	Planes int
	// average count of bits per pixel, over all planes
	BitsPerPixel int
	// average count of bits per pixel, for each plane
	BitsPerPixelPlanes []int
	shapes             []planeShape
}

var (
	// YUV 4:2:0 planar, like ColorSpaceI420 but with 3 buffers, planes[0] is Y, planes[1] is U, planes[2] is V
	ColorSpacePlanar = ColorSpace{cspPlanar, 3, 12, []int{8, 2, 2}, []planeShape{shapeLuma, shapeChroma, shapeChroma}}
	// YUV 4:2:0 planar, one buffer
	ColorSpaceI420 = ColorSpace{cspI420, 1, 12, []int{12}, []planeShape{shape420}}
	// YVU 4:2:0 planar, one buffer
	ColorSpaceYV12 = ColorSpace{cspYV12, 1, 12, []int{12}, []planeShape{shape420}}
	// YUV 4:2:2 packed
	ColorSpaceYUY2 = ColorSpace{cspYUY2, 1, 16, []int{16}, []planeShape{shape16}}
	// YUV 4:2:2 packed
	ColorSpaceUYVY = ColorSpace{cspUYVY, 1, 16, []int{16}, []planeShape{shape16}}
	// YUV 4:2:2 packed
	ColorSpaceYVYU = ColorSpace{cspYVYU, 1, 16, []int{16}, []planeShape{shape16}}
	// 24-bit RGB packed
	ColorSpaceRGB = ColorSpace{cspRGB, 1, 24, []int{24}, []planeShape{shape24}}
	// 32-bit BGRA packed
	ColorSpaceBGRA = ColorSpace{cspBGRA, 1, 32, []int{32}, []planeShape{shape32}}
	// 32-bit ABGR packed
	ColorSpaceABGR = ColorSpace{cspABGR, 1, 32, []int{32}, []planeShape{shape32}}
	// 32-bit RGBA packed
	ColorSpaceRGBA = ColorSpace{cspRGBA, 1, 32, []int{32}, []planeShape{shape32}}
	// 32-bit ARGB packed
	ColorSpaceARGB = ColorSpace{cspARGB, 1, 32, []int{32}, []planeShape{shape32}}
	// 24-bit BGR packed
	ColorSpaceBGR = ColorSpace{cspBGR, 1, 24, []int{24}, []planeShape{shape24}}
	// 16-bit RGB555 packed
	ColorSpaceRGB555 = ColorSpace{cspRGB555, 1, 16, []int{16}, []planeShape{shape16}}
	// 16-bit RGB565 packed
	ColorSpaceRGB565 = ColorSpace{cspRGB565, 1, 16, []int{16}, []planeShape{shape16}}
	// output only: decoder-owned YUV 4:2:0 planes, valid until the next decoder call
	ColorSpaceInternal = ColorSpace{cspInternal, 3, 12, []int{8, 2, 2}, []planeShape{shapeLuma, shapeChroma, shapeChroma}}
	// output only: decode without producing an image
	ColorSpaceNoOutput = ColorSpace{cspNull, 0, 0, []int{}, nil}
)

// Image represents an input or output image data and its color space.
//
// The data is stored in multiple buffers, one per image plane; each plane
// has a specific stride (data size in bytes per line).
//
// When used as input, Colorspace must be set to the actual color space of
// the image data, and Planes must contain exactly Colorspace.Planes planes
// holding enough data for the frame size. Strides can be nil or 0 to assume
// compact rows.
//
// When used as output, Planes and Strides can be nil (or contain nil / 0
// entries), in which case compact buffers are allocated and the strides
// filled in. With ColorSpaceInternal the planes are replaced by views of
// decoder memory, valid until the next call on the Decoder.
type Image struct {
	// image color space, determines the number of planes
	Colorspace ColorSpace
	// whether to flip the image vertically, during converting (only set on
	// the output image), decoding, or encoding
	VerticalFlip bool
	// image planes, each plane contains image data
	Planes [][]byte
	// planes strides (bytes per row)
	Strides []int
}

func (i *Image) csp() int32 {
	csp := i.Colorspace.value
	if i.VerticalFlip {
		csp |= native(ColorSpaceVerticalFlip)
	}
	return csp
}

func (i *Image) checkStrides() error {
	if i.Strides == nil {
		i.Strides = make([]int, i.Colorspace.Planes)
	} else if len(i.Strides) != i.Colorspace.Planes {
		return fmt.Errorf("xvid: unexpected number of strides for image, expected %d, got %d", i.Colorspace.Planes, len(i.Strides))
	}
	return nil
}

func (i *Image) stride(j, width int) (int, error) {
	s := i.Colorspace.shapes[j].rowBytes(width)
	switch {
	case i.Strides[j] == 0:
		return s, nil
	case i.Strides[j] < s:
		return 0, fmt.Errorf("xvid: insufficient stride in plane %d (strides is the total length of row, not just the offset), need at least %d, got %d", j, s, i.Strides[j])
	default:
		return i.Strides[j], nil
	}
}

// nativeInput validates i as an input image and fills a native image
// referencing its planes. The planes are pinned in p.
func (i *Image) nativeInput(p *runtime.Pinner, width, height int) (xvidImage, error) {
	var img xvidImage
	if i.Colorspace.value == cspInternal {
		return img, fmt.Errorf("xvid: unexpected colorspace ColorSpaceInternal, use only for output")
	}
	if len(i.Planes) != i.Colorspace.Planes {
		return img, fmt.Errorf("xvid: unexpected number of planes for image, expected %d, got %d", i.Colorspace.Planes, len(i.Planes))
	}
	if err := i.checkStrides(); err != nil {
		return img, err
	}
	for j, v := range i.Planes {
		s, err := i.stride(j, width)
		if err != nil {
			return img, err
		}
		l := i.Colorspace.shapes[j].minLen(width, height, s)
		if len(v) < l || len(v) == 0 {
			return img, fmt.Errorf("xvid: not enough space in plane %d, need at least %d, got %d", j, l, len(v))
		}
		p.Pin(&v[0])
		img.plane[j] = unsafe.Pointer(&v[0])
		img.stride[j] = int32(s)
	}
	img.csp = i.csp()
	return img, nil
}

// nativeOutput prepares i as an output image, allocating missing planes,
// and fills a native image referencing them. The planes are pinned in p.
func (i *Image) nativeOutput(p *runtime.Pinner, width, height int) (xvidImage, error) {
	var img xvidImage
	if i.Planes == nil {
		i.Planes = make([][]byte, i.Colorspace.Planes)
	} else if len(i.Planes) != i.Colorspace.Planes {
		return img, fmt.Errorf("xvid: unexpected number of planes for image, expected %d, got %d", i.Colorspace.Planes, len(i.Planes))
	}
	if err := i.checkStrides(); err != nil {
		return img, err
	}
	img.csp = i.csp()
	if width <= 0 || height <= 0 || i.Colorspace.value == cspInternal {
		return img, nil
	}
	for j, v := range i.Planes {
		s, err := i.stride(j, width)
		if err != nil {
			return img, err
		}
		i.Strides[j] = s
		shape := i.Colorspace.shapes[j]
		if v == nil {
			v = make([]byte, s*shape.rows(height))
			i.Planes[j] = v
		} else if l := shape.minLen(width, height, s); len(v) < l {
			return img, fmt.Errorf("xvid: not enough space in plane %d, need at least %d, got %d", j, l, len(v))
		}
		if len(v) == 0 {
			continue
		}
		p.Pin(&v[0])
		img.plane[j] = unsafe.Pointer(&v[0])
		img.stride[j] = int32(s)
	}
	return img, nil
}

// adoptInternal points the planes of i at the decoder-owned buffers
// described by img.
func (i *Image) adoptInternal(img *xvidImage, width, height int) {
	for j := 0; j < ColorSpaceInternal.Planes; j++ {
		stride := int(img.stride[j])
		i.Strides[j] = stride
		if img.plane[j] == nil {
			i.Planes[j] = nil
			continue
		}
		l := ColorSpaceInternal.shapes[j].minLen(width, height, stride)
		i.Planes[j] = unsafe.Slice((*byte)(img.plane[j]), l)
	}
}

// viewImage returns a non-owning planar view of a native image, as handed
// to plugins. It returns nil if the image is not planar.
func viewImage(img *xvidImage, width, height int) *Image {
	if img.csp&^native(ColorSpaceVerticalFlip) != cspPlanar {
		return nil
	}
	out := &Image{
		Colorspace:   ColorSpacePlanar,
		VerticalFlip: img.csp&native(ColorSpaceVerticalFlip) != 0,
		Planes:       make([][]byte, ColorSpacePlanar.Planes),
		Strides:      make([]int, ColorSpacePlanar.Planes),
	}
	for j := 0; j < ColorSpacePlanar.Planes; j++ {
		stride := int(img.stride[j])
		out.Strides[j] = stride
		if img.plane[j] == nil {
			continue
		}
		l := ColorSpacePlanar.shapes[j].minLen(width, height, stride)
		out.Planes[j] = unsafe.Slice((*byte)(img.plane[j]), l)
	}
	return out
}
