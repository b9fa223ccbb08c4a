package xvid

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"unsafe"
)

// decodeWindow is the read-ahead window of a streaming Decoder. No sane
// MPEG-4 Part 2 frame comes close to half of it.
const decodeWindow = 4 * 1024 * 1024

// packetPadding is appended to packets passed to DecodePacket, since the
// bitstream reader fetches whole words past the end of the data.
const packetPadding = 8

// Decoder is an initialized Xvid decoder.
// To create a Decoder, use NewDecoder.
// A Decoder must be closed after use, by calling its Close method.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	// current frame width in pixels
	Width int
	// current frame height in pixels
	Height int

	handle  unsafe.Pointer
	stream  *streamBuffer
	scratch []byte
}

// DecoderInit is information used to create a Decoder in NewDecoder.
type DecoderInit struct {
	// Reader from which to read encoded frame data, required by Decode.
	// The Reader is not closed by the Decoder.
	Input io.Reader
	// optional initial frame width in pixels (can be automatically detected by the Decoder)
	Width int
	// optional initial frame height in pixels (can be automatically detected by the Decoder)
	Height int
	// optional FourCC code of the raw Xvid stream
	FourCC int
	// optional number of threads to use for decoding, 0 meaning single-threaded
	NumThreads int
}

// DecoderFrame is information used when decoding a frame.
type DecoderFrame struct {
	// output image to store the decoded data to; nil decodes without output
	Output *Image
	// optional decoder flags to use for decoding the frame
	DecodeFlags DecoderFlag
	// optional brightness offset, 0 meaning no offset
	Brightness int
	// optional hook receiving the raw statistics of every native decode
	// call. The blob and any QScale view taken from it are only valid
	// during the hook.
	OnStats func(*StatsBlob)
}

// DecoderStats is information about a decoded frame.
// If the frame is a metadata pseudo-frame (VOL), StatsVOL is not nil, otherwise
// StatsFrame is not nil.
type DecoderStats struct {
	// type of the decoded frame
	FrameType FrameType
	// non-nil if the frame type is FrameTypeVOL
	StatsVOL *DecoderStatsVOL
	// non-nil if the frame type is not FrameTypeVOL
	StatsFrame *DecoderStatsFrame
}

var decoderStatsNothing = DecoderStats{FrameType: frameTypeNothing}

// DecoderStatsVOL is information specific to a metadata pseudo-frame.
type DecoderStatsVOL struct {
	// whether the frame is interlaced
	Interlacing bool
	// frame width in pixels
	Width int
	// frame height in pixels
	Height int
	// frame pixel aspect ratio
	PixelAspectRatio PixelAspectRatio
}

// DecoderStatsFrame is information specific to an actual non-metadata non-empty frame.
type DecoderStatsFrame struct {
	// valid only for interlaced frames (see DecoderStatsVOL.Interlacing), whether the interlacing is upper field first
	UpperFieldFirst bool
	// macroblock quantizers table (one quantizer per macroblock), can be nil
	Quantizers []int32
	// quantizers table stride (equal to the count of macroblocks in a line)
	QuantizersStride int
	// time base and increment as reported by the decoder
	TimeBase      int
	TimeIncrement int
}

// NewDecoder creates a new Decoder based on a DecoderInit configuration. Init (or InitWithFlags) must be called once before calling this function.
// The Decoder is non-nil if and only if the returned error is nil.
func NewDecoder(init DecoderInit) (*Decoder, error) {
	if err := loadXvid(); err != nil {
		return nil, err
	}
	create := decCreate{
		version:    xvidVersion,
		width:      int32(init.Width),
		height:     int32(init.Height),
		fourcc:     int32(init.FourCC),
		numThreads: int32(init.NumThreads),
	}
	if code := xvidDecore(nil, opDecCreate, unsafe.Pointer(&create), nil); code != 0 {
		return nil, xvidErr(code)
	}
	d := &Decoder{
		Width:  init.Width,
		Height: init.Height,
		handle: create.handle,
	}
	if init.Input != nil {
		d.stream = newStreamBuffer(init.Input, decodeWindow)
	}
	return d, nil
}

// Decode decodes a single non-empty frame (either metadata (VOL) or an actual frame) from the Input stream.
//
// Decode returns the length in bytes of the stream data consumed for the
// frame; since Decode buffers its Reader this can be less than what was read.
//
// Decode returns io.EOF once the entire stream has been decoded. Any error
// is sticky: later calls return it again. The Decoder must still be closed.
func (d *Decoder) Decode(frame DecoderFrame) (int, DecoderStats, error) {
	if d.stream == nil {
		return 0, decoderStatsNothing, ErrNoInput
	}
	return d.stream.next(func(input []byte) (int, DecoderStats, error) {
		if input == nil {
			return d.decode(frame, nil, -1)
		}
		// the bitstream reader over-reads by up to a word, keep it inside
		// the buffered data
		l := len(input) - len(input)%8
		if l == 0 {
			return 0, decoderStatsNothing, nil
		}
		return d.decode(frame, input, l)
	})
}

// DecodePacket decodes at most one frame from packet, which must start at a
// frame boundary (for example a frame reassembled from RTP). A nil packet
// flushes the frames the decoder still holds. It returns the number of bytes
// consumed; FrameType is frameTypeNothing when the decoder needs more data.
func (d *Decoder) DecodePacket(frame DecoderFrame, packet []byte) (int, DecoderStats, error) {
	if packet == nil {
		return d.decode(frame, nil, -1)
	}
	if len(packet) == 0 {
		return 0, decoderStatsNothing, nil
	}
	if cap(d.scratch) < len(packet)+packetPadding {
		d.scratch = make([]byte, len(packet)+packetPadding)
	}
	buf := d.scratch[:len(packet)+packetPadding]
	copy(buf, packet)
	clear(buf[len(packet):])
	n, stats, err := d.decode(frame, buf, len(packet))
	if n > len(packet) {
		n = len(packet)
	}
	return n, stats, err
}

// decode runs one native decode call over the first length bytes of input.
func (d *Decoder) decode(frame DecoderFrame, input []byte, length int) (int, DecoderStats, error) {
	output := frame.Output
	if output == nil {
		output = &Image{Colorspace: ColorSpaceNoOutput}
	}
	var pinner runtime.Pinner
	defer pinner.Unpin()

	var bitstream unsafe.Pointer
	if input != nil {
		pinner.Pin(&input[0])
		bitstream = unsafe.Pointer(&input[0])
	}
	out, err := output.nativeOutput(&pinner, d.Width, d.Height)
	if err != nil {
		return 0, decoderStatsNothing, err
	}
	df := decFrame{
		version:    xvidVersion,
		general:    native(frame.DecodeFlags),
		bitstream:  bitstream,
		length:     int32(length),
		output:     out,
		brightness: int32(frame.Brightness),
	}
	blob := StatsBlob{version: xvidVersion}
	code := xvidDecore(d.handle, opDecDecode, unsafe.Pointer(&df), unsafe.Pointer(&blob))
	if code < 0 {
		return 0, decoderStatsNothing, xvidErr(code)
	}
	if frame.OnStats != nil {
		frame.OnStats(&blob)
	}
	stats := d.stats(&blob)
	if stats.FrameType > 0 && output.Colorspace.value == cspInternal {
		output.adoptInternal(&df.output, d.Width, d.Height)
	}
	return int(code), stats, nil
}

// stats converts the native statistics of one decode call. A VOL updates
// the decoder dimensions.
func (d *Decoder) stats(blob *StatsBlob) DecoderStats {
	stats := DecoderStats{FrameType: blob.Type()}
	switch {
	case stats.FrameType > 0:
		vop := ExtractVOP(blob)
		stats.StatsFrame = &DecoderStatsFrame{
			UpperFieldFirst:  vop.UpperFieldFirst(),
			Quantizers:       d.quantizers(vop),
			QuantizersStride: int(vop.QScaleStride),
			TimeBase:         int(vop.TimeBase),
			TimeIncrement:    int(vop.TimeIncrement),
		}
	case stats.FrameType == FrameTypeVOL:
		vol := ExtractVOL(blob)
		stats.StatsVOL = &DecoderStatsVOL{
			Interlacing:      vol.Interlacing(),
			Width:            int(vol.Width),
			Height:           int(vol.Height),
			PixelAspectRatio: vol.PixelAspectRatio(),
		}
		d.Width = stats.StatsVOL.Width
		d.Height = stats.StatsVOL.Height
	}
	return stats
}

// quantizers copies the macroblock quantizer table out of decoder memory.
func (d *Decoder) quantizers(vop VOPData) []int32 {
	if vop.qscale == nil {
		return nil
	}
	mbWidth := (d.Width + 15) / 16
	mbHeight := (d.Height + 15) / 16
	if mbWidth != int(vop.QScaleStride) {
		logger().Warn("xvid: quantizer table stride does not match the macroblock grid, dropping table",
			"stride", vop.QScaleStride, "mb_width", mbWidth, "width", d.Width)
		return nil
	}
	return vop.CopyQScale(mbHeight)
}

// Close closes any internal resources specific to the Decoder.
// It must be called exactly once per Decoder and no other methods of the Decoder
// must be called after Close.
func (d *Decoder) Close() {
	if d.handle == nil {
		return
	}
	xvidDecore(d.handle, opDecDestroy, nil, nil)
	d.handle = nil
}

// streamBuffer feeds a decode function from a Reader through a fixed
// window, compacting it once more than half has been consumed.
type streamBuffer struct {
	r        io.Reader
	buf      []byte
	i        int
	n        int
	started  bool
	eof      bool
	draining bool
	err      error // sticky
}

func newStreamBuffer(r io.Reader, size int) *streamBuffer {
	return &streamBuffer{r: r, buf: make([]byte, size)}
}

var errBufferOverrun = errors.New("xvid: decoder consumed past the buffered data")

// fill compacts the window and reads until it is full or the Reader ends.
func (s *streamBuffer) fill() error {
	if s.i > 0 {
		copy(s.buf, s.buf[s.i:s.n])
		s.n -= s.i
		s.i = 0
	}
	r, err := io.ReadFull(s.r, s.buf[s.n:])
	s.n += r
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			s.eof = true
			return nil
		}
		return err
	}
	return nil
}

// next calls decode until it yields a frame. decode gets nil once the
// stream is exhausted, to flush the frames the decoder still holds.
func (s *streamBuffer) next(decode func(input []byte) (int, DecoderStats, error)) (int, DecoderStats, error) {
	if s.err != nil {
		return 0, decoderStatsNothing, s.err
	}
	if !s.started {
		s.started = true
		if err := s.fill(); err != nil {
			s.err = err
			return 0, decoderStatsNothing, s.err
		}
	}

	total := 0
	for {
		if s.eof && (s.draining || s.n-s.i <= 1) {
			r, stats, err := decode(nil)
			if err != nil {
				if errors.Is(err, ErrEnd) {
					err = io.EOF
				}
				s.err = err
				return 0, decoderStatsNothing, s.err
			}
			total += r
			if stats.FrameType == frameTypeNothing {
				continue
			}
			return total, stats, nil
		}

		if !s.eof && s.i > len(s.buf)/2 {
			if err := s.fill(); err != nil {
				s.err = err
				return 0, decoderStatsNothing, s.err
			}
		}
		r, stats, err := decode(s.buf[s.i:s.n])
		if err != nil {
			s.err = err
			return 0, decoderStatsNothing, s.err
		}
		if s.i+r > s.n {
			s.err = errBufferOverrun
			return 0, decoderStatsNothing, s.err
		}
		s.i += r
		total += r
		if stats.FrameType != frameTypeNothing {
			return total, stats, nil
		}
		if r > 0 {
			continue
		}
		// no progress: the decoder needs more data than is buffered
		switch {
		case s.eof:
			s.draining = true
		case s.i == 0 && s.n == len(s.buf):
			s.err = fmt.Errorf("xvid: frame larger than the %d bytes decode window", len(s.buf))
			return 0, decoderStatsNothing, s.err
		default:
			if err := s.fill(); err != nil {
				s.err = err
				return 0, decoderStatsNothing, s.err
			}
		}
	}
}
