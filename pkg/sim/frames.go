package sim

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/zacpullen/arena-api/pkg/acquisition"
	"github.com/zacpullen/arena-api/pkg/buffer"
	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/pixelformat"
)

// chunkOrder is the order chunks trail the image in, by ChunkSelector
// entry.
var chunkOrder = []string{"Width", "Height", "Timestamp", "ExposureTime", "PixelFormat", "CRC"}

var chunkLen = map[string]int{
	"Width":        4,
	"Height":       4,
	"Timestamp":    8,
	"ExposureTime": 8,
	"PixelFormat":  4,
	"CRC":          4,
}

// chunkTrailer is the id and length following each chunk.
const chunkTrailer = 8

// layout is the payload layout implied by the current features.
type layout struct {
	width, height    int64
	offsetX, offsetY int64
	format           pixelformat.Format
	exposure         float64
	chunkMode        bool
	chunks           []string
}

func (l layout) imageSize() int {
	return int(l.width*l.height) * l.format.BitsPerPixel() / 8
}

func (l layout) payloadSize() int {
	n := l.imageSize()
	if !l.chunkMode || len(l.chunks) == 0 {
		return n
	}
	n += chunkTrailer
	for _, c := range l.chunks {
		n += chunkLen[c] + chunkTrailer
	}
	return n
}

func (b *Backend) layout() (layout, error) {
	var l layout
	g := b.maps.Device
	var err error
	for _, v := range []struct {
		name string
		dst  *int64
	}{
		{"Width", &l.width},
		{"Height", &l.height},
		{"OffsetX", &l.offsetX},
		{"OffsetY", &l.offsetY},
	} {
		if *v.dst, err = g.IntValue(v.name); err != nil {
			return l, err
		}
	}
	pf, err := g.EnumValue("PixelFormat")
	if err != nil {
		return l, err
	}
	if l.format, err = pixelformat.Parse(pf); err != nil {
		return l, err
	}
	if l.exposure, err = g.FloatValue("ExposureTime"); err != nil {
		return l, err
	}
	if l.chunkMode, err = g.BoolValue("ChunkModeActive"); err != nil {
		return l, err
	}
	if l.chunkMode {
		for _, c := range chunkOrder {
			if b.chunkEnable.on(c) {
				l.chunks = append(l.chunks, c)
			}
		}
	}
	return l, nil
}

// frame renders frame id: a diagonal gradient that shifts by one gray
// level per frame, followed by the enabled chunks.
func (b *Backend) frame(id uint64) (*buffer.Frame, error) {
	l, err := b.layout()
	if err != nil {
		return nil, err
	}
	ts := b.timestamp()
	img := gradient(l, id)
	f := &buffer.Frame{
		FrameID:     id,
		TimestampNs: ts,
		Image: buffer.Image{
			Width:       l.width,
			Height:      l.height,
			OffsetX:     l.offsetX,
			OffsetY:     l.offsetY,
			PixelFormat: l.format,
			Data:        img,
		},
		Incomplete: b.opts.IncompleteEvery > 0 && id%b.opts.IncompleteEvery == 0,
	}
	for _, c := range l.chunks {
		var data []byte
		switch c {
		case "Width":
			data = binary.LittleEndian.AppendUint32(nil, uint32(l.width))
		case "Height":
			data = binary.LittleEndian.AppendUint32(nil, uint32(l.height))
		case "Timestamp":
			data = binary.LittleEndian.AppendUint64(nil, ts)
		case "ExposureTime":
			data = binary.LittleEndian.AppendUint64(nil, math.Float64bits(l.exposure))
		case "PixelFormat":
			data = binary.LittleEndian.AppendUint32(nil, uint32(l.format))
		case "CRC":
			f.Chunks = append(f.Chunks, buffer.CRCChunk(img))
			continue
		}
		f.Chunks = append(f.Chunks, buffer.Chunk{ID: b.chunkIDs[c], Data: data})
	}
	return f, nil
}

// gradient fills an image with (x + y + id) masked to the pixel depth.
// Multi-byte pixels are little endian.
func gradient(l layout, id uint64) []byte {
	bytesPerPixel := l.format.BitsPerPixel() / 8
	mask := uint64(1)<<l.format.Depth() - 1
	img := make([]byte, l.imageSize())
	for y := range l.height {
		for x := range l.width {
			v := (uint64(x+y) + id) & mask
			i := int(y*l.width+x) * bytesPerPixel
			switch bytesPerPixel {
			case 1:
				img[i] = byte(v)
			case 2:
				binary.LittleEndian.PutUint16(img[i:], uint16(v))
			}
		}
	}
	return img
}

// frameSource renders frames on a ticker in free-run mode, or one per
// TriggerSoftware when the FrameStart trigger is on.
type frameSource struct {
	b *Backend

	mu    sync.Mutex
	sink  acquisition.Sink
	armed bool
	stop  chan struct{}
	next  uint64
}

func (s *frameSource) Open(sink acquisition.Sink) error {
	if err := s.b.checkConnected("Open"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink != nil {
		return errkind.New(errkind.ErrIllegalState, "Open", "frame source is already open")
	}
	s.sink = sink
	s.next = 0
	return nil
}

func (s *frameSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.haltLocked()
	s.sink = nil
	return nil
}

func (s *frameSource) haltLocked() {
	s.armed = false
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *frameSource) acquisitionStart() error {
	const op = "AcquisitionStart"
	if err := s.b.checkConnected(op); err != nil {
		return err
	}
	g := s.b.maps.Device
	mode, err := g.EnumValue("AcquisitionMode")
	if err != nil {
		return err
	}
	rate, err := g.FloatValue("AcquisitionFrameRate")
	if err != nil {
		return err
	}
	triggered := s.b.triggerMode.on("FrameStart")

	s.mu.Lock()
	if s.sink == nil {
		s.mu.Unlock()
		return errkind.New(errkind.ErrIllegalState, op, "no stream is open")
	}
	s.haltLocked()
	s.armed = true
	freeRun := !triggered && mode == "Continuous"
	if freeRun {
		s.stop = make(chan struct{})
		go s.run(s.stop, time.Duration(float64(time.Second)/rate))
	}
	s.mu.Unlock()

	s.b.logger.Debug("acquisition started", "camera", s.b.info.MACAddress, "mode", mode, "triggered", triggered)
	if !triggered && mode == "SingleFrame" {
		return s.emit()
	}
	return nil
}

func (s *frameSource) acquisitionStop() error {
	s.mu.Lock()
	s.haltLocked()
	s.mu.Unlock()
	s.b.logger.Debug("acquisition stopped", "camera", s.b.info.MACAddress)
	return nil
}

func (s *frameSource) triggerSoftware() error {
	const op = "TriggerSoftware"
	if !s.b.triggerMode.on("FrameStart") {
		return errkind.New(errkind.ErrIllegalState, op, "TriggerMode[FrameStart] is Off")
	}
	s.mu.Lock()
	armed := s.armed
	s.mu.Unlock()
	if !armed {
		return errkind.New(errkind.ErrIllegalState, op, "acquisition is not started")
	}
	return s.emit()
}

func (s *frameSource) run(stop <-chan struct{}, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := s.emit(); err != nil {
				s.b.logger.Warn("rendering frame failed", "camera", s.b.info.MACAddress, "error", err)
			}
		}
	}
}

// emit renders the next frame and delivers it synchronously, followed by
// its ExposureEnd event.
func (s *frameSource) emit() error {
	s.mu.Lock()
	sink := s.sink
	if sink == nil || !s.armed {
		s.mu.Unlock()
		return nil
	}
	s.next++
	id := s.next
	s.mu.Unlock()

	f, err := s.b.frame(id)
	if err != nil {
		return err
	}
	sink.Deliver(f)
	s.b.events.exposureEnd(id, f.TimestampNs)
	return nil
}
