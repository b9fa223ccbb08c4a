package xvid

import (
	"errors"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"
)

// MPEG-4 Visual in an ES descriptor (ISO/IEC 14496-1 tables 5 and 6).
const (
	esObjectTypeVisual = 0x20
	// streamType 0x04 (VisualStream) << 2 | reserved bit
	esStreamTypeVisual = 0x11
)

var (
	// ErrNoFrames is returned when encoding an MP4Writer holding no frames.
	ErrNoFrames = errors.New("xvid: no frames to write")

	errMP4NeedKeyframe = errors.New("xvid: MP4 track must start with a keyframe carrying stream headers")
	errMP4NoVideo      = errors.New("xvid: no MPEG-4 Visual track found")
)

// MP4Writer collects EncodedFrames with 90 kHz timestamps, as produced by
// StreamEncoder, and writes them as a fragmented MP4 file with one mp4v
// track. Stream headers stay in-band and are also copied to the esds box.
type MP4Writer struct {
	width  int
	height int
	config []byte
	frames []*EncodedFrame
}

// NewMP4Writer creates an MP4Writer for frames of the given size.
func NewMP4Writer(width, height int) *MP4Writer {
	return &MP4Writer{width: width, height: height}
}

// WriteFrame appends a copy of frame. The first frame must be a keyframe
// with stream headers.
func (w *MP4Writer) WriteFrame(frame *EncodedFrame) error {
	if len(frame.Data) == 0 {
		return nil
	}
	if w.config == nil {
		config := StreamConfig(frame.Data)
		if config == nil {
			return errMP4NeedKeyframe
		}
		w.config = config
	}
	w.frames = append(w.frames, frame.Clone())
	return nil
}

// Len returns the number of frames written.
func (w *MP4Writer) Len() int {
	return len(w.frames)
}

// Encode writes the MP4 file to out.
func (w *MP4Writer) Encode(out io.Writer) error {
	if len(w.frames) == 0 {
		return ErrNoFrames
	}
	const trackID = 1

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(VideoClockRate, "video", "und")
	trak := init.Moov.Trak

	esds := mp4.CreateEsdsBox(w.config)
	esds.DecConfigDescriptor.ObjectType = esObjectTypeVisual
	esds.DecConfigDescriptor.StreamType = esStreamTypeVisual
	mp4v := mp4.CreateVisualSampleEntryBox("mp4v", uint16(w.width), uint16(w.height), esds)
	trak.Mdia.Minf.Stbl.Stsd.AddChild(mp4v)
	trak.Tkhd.Width = mp4.Fixed32(w.width << 16)
	trak.Tkhd.Height = mp4.Fixed32(w.height << 16)

	frag, err := mp4.CreateFragment(1, trackID)
	if err != nil {
		return fmt.Errorf("xvid: create fragment: %w", err)
	}
	start := w.frames[0].Timestamp
	for i, frame := range w.frames {
		flags := mp4.NonSyncSampleFlags
		if frame.IsKeyframe() {
			flags = mp4.SyncSampleFlags
		}
		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags: flags,
				Size:  uint32(len(frame.Data)),
				Dur:   w.duration(i),
			},
			DecodeTime: uint64(frame.Timestamp - start),
			Data:       frame.Data,
		})
	}

	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "mp41"})
	if err := ftyp.Encode(out); err != nil {
		return fmt.Errorf("xvid: encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(out); err != nil {
		return fmt.Errorf("xvid: encode moov: %w", err)
	}
	if err := frag.Encode(out); err != nil {
		return fmt.Errorf("xvid: encode fragment: %w", err)
	}
	return nil
}

// duration returns the sample duration of frame i: its own Duration, else
// the distance to the next frame, else one frame at 25 fps.
func (w *MP4Writer) duration(i int) uint32 {
	if d := w.frames[i].Duration; d > 0 {
		return d
	}
	if i+1 < len(w.frames) {
		if d := w.frames[i+1].Timestamp - w.frames[i].Timestamp; d > 0 && d < 1<<31 {
			return d
		}
	}
	return VideoClockRate / 25
}

// ReadMP4 reads the frames of the first mp4v track of a fragmented or
// progressive MP4 file. Timestamps are rescaled to 90 kHz.
func ReadMP4(r io.ReadSeeker) ([]*EncodedFrame, error) {
	f, err := mp4.DecodeFile(r)
	if err != nil {
		return nil, fmt.Errorf("xvid: decode mp4: %w", err)
	}

	var (
		moov      *mp4.MoovBox
		trackID   uint32
		timescale uint32
	)
	if f.Init != nil {
		moov = f.Init.Moov
	} else {
		moov = f.Moov
	}
	if moov == nil {
		return nil, errMP4NoVideo
	}
	var trak *mp4.TrakBox
	for _, t := range moov.Traks {
		if isMP4VTrack(t) {
			trak = t
			trackID = t.Tkhd.TrackID
			timescale = t.Mdia.Mdhd.Timescale
			break
		}
	}
	if trak == nil || timescale == 0 {
		return nil, errMP4NoVideo
	}
	rescale := func(t uint64) uint32 {
		return uint32(t * VideoClockRate / uint64(timescale))
	}

	var frames []*EncodedFrame
	addSample := func(data []byte, decodeTime uint64, dur uint32) {
		frame := &EncodedFrame{
			Data:      data,
			Timestamp: rescale(decodeTime),
			Duration:  rescale(uint64(dur)),
		}
		frame.FrameType, _ = VOPCodingType(data)
		frames = append(frames, frame)
	}

	if !f.IsFragmented() {
		stbl := trak.Mdia.Minf.Stbl
		if stbl.Stsz == nil || stbl.Stts == nil {
			return nil, errMP4NoVideo
		}
		for nr := uint32(1); nr <= stbl.Stsz.SampleNumber; nr++ {
			data, err := readSample(stbl, r, nr)
			if err != nil {
				return nil, err
			}
			decodeTime, dur := stbl.Stts.GetDecodeTime(nr)
			addSample(data, decodeTime, dur)
		}
		return frames, nil
	}

	var trex *mp4.TrexBox
	if moov.Mvex != nil {
		for _, t := range moov.Mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
			}
		}
	}
	for _, seg := range f.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			samples, err := frag.GetFullSamples(trex)
			if err != nil {
				return nil, fmt.Errorf("xvid: get samples: %w", err)
			}
			for _, s := range samples {
				addSample(s.Data, s.DecodeTime, s.Dur)
			}
		}
	}
	return frames, nil
}

func isMP4VTrack(t *mp4.TrakBox) bool {
	if t.Mdia == nil || t.Mdia.Hdlr == nil || t.Mdia.Hdlr.HandlerType != "vide" {
		return false
	}
	if t.Mdia.Mdhd == nil || t.Mdia.Minf == nil || t.Mdia.Minf.Stbl == nil || t.Mdia.Minf.Stbl.Stsd == nil {
		return false
	}
	for _, child := range t.Mdia.Minf.Stbl.Stsd.Children {
		if child.Type() == "mp4v" {
			return true
		}
	}
	return false
}

// readSample reads sample nr (1-based) of a progressive file.
func readSample(stbl *mp4.StblBox, r io.ReadSeeker, nr uint32) ([]byte, error) {
	if stbl.Stsc == nil {
		return nil, fmt.Errorf("xvid: missing stsc box")
	}
	chunkNr, first, err := stbl.Stsc.ChunkNrFromSampleNr(int(nr))
	if err != nil {
		return nil, fmt.Errorf("xvid: sample %d: %w", nr, err)
	}
	var offset uint64
	switch {
	case stbl.Stco != nil:
		if offset, err = stbl.Stco.GetOffset(chunkNr); err != nil {
			return nil, fmt.Errorf("xvid: chunk %d: %w", chunkNr, err)
		}
	case stbl.Co64 != nil && chunkNr >= 1 && chunkNr <= len(stbl.Co64.ChunkOffset):
		offset = stbl.Co64.ChunkOffset[chunkNr-1]
	default:
		return nil, fmt.Errorf("xvid: no offset for chunk %d", chunkNr)
	}
	for s := uint32(first); s < nr; s++ {
		offset += uint64(stbl.Stsz.GetSampleSize(int(s)))
	}

	data := make([]byte, stbl.Stsz.GetSampleSize(int(nr)))
	if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("xvid: read sample %d: %w", nr, err)
	}
	return data, nil
}
