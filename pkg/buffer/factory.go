package buffer

import (
	"encoding/binary"
	"sync"

	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/pixelformat"
)

// Factory creates caller-owned buffers. Every buffer it returns must be
// passed to Destroy exactly once.
type Factory struct {
	mu   sync.Mutex
	live map[*Buffer]struct{}
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{live: make(map[*Buffer]struct{})}
}

// Live returns the number of buffers not yet destroyed.
func (f *Factory) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

func (f *Factory) track(b *Buffer) *Buffer {
	b.origin = OriginFactory
	f.mu.Lock()
	f.live[b] = struct{}{}
	f.mu.Unlock()
	return b
}

// Create builds an image buffer from img. The image data is copied.
func (f *Factory) Create(img Image) (*Buffer, error) {
	const op = "Factory.Create"
	if img.Width <= 0 || img.Height <= 0 {
		return nil, errkind.New(errkind.ErrInvalidArgument, op, "image size %dx%d must be positive", img.Width, img.Height)
	}
	if !img.PixelFormat.Known() {
		return nil, errkind.New(errkind.ErrInvalidArgument, op, "unknown pixel format %s", img.PixelFormat)
	}
	need := imageBytes(img)
	if int64(len(img.Data)) < need {
		return nil, errkind.New(errkind.ErrOutOfRange, op,
			"%d bytes of data for a %dx%d %s image that needs %d", len(img.Data), img.Width, img.Height, img.PixelFormat, need)
	}

	data := make([]byte, need)
	copy(data, img.Data)
	img.Data = data
	b := &Buffer{mem: data}
	b.Fill(&Frame{Image: img})
	return f.track(b), nil
}

// Copy duplicates src into a new caller-owned buffer, chunk data included.
func (f *Factory) Copy(src *Buffer) (*Buffer, error) {
	if err := f.usable("Factory.Copy", src); err != nil {
		return nil, err
	}
	b := &Buffer{
		mem:         append([]byte(nil), src.Payload()...),
		payloadSize: src.payloadSize,
		imageLen:    src.imageLen,
		frameID:     src.frameID,
		timestampNs: src.timestampNs,
		payloadType: src.payloadType,
		incomplete:  src.incomplete,
		truncated:   src.truncated,
		image:       src.image,
		deviceName:  src.deviceName,
		chunkDefs:   src.chunkDefs,
	}
	b.sizeFilled = len(b.mem)
	return f.track(b), nil
}

// Convert creates a caller-owned copy of src in pixel format to. Mono and
// Bayer sources with 8 or 16 bit containers convert to Mono8 and Mono16;
// Bayer mosaics are averaged per 2x2 cell.
func (f *Factory) Convert(src *Buffer, to pixelformat.Format) (*Buffer, error) {
	const op = "Factory.Convert"
	if err := f.usable(op, src); err != nil {
		return nil, err
	}
	if err := src.imageCheck(op); err != nil {
		return nil, err
	}
	from := src.image.PixelFormat
	if to != pixelformat.Mono8 && to != pixelformat.Mono16 {
		return nil, errkind.New(errkind.ErrInvalidArgument, op, "conversion to %s is not supported", to)
	}
	if !(from.IsMono() || from.IsBayer()) || (from.BitsPerPixel() != 8 && from.BitsPerPixel() != 16) {
		return nil, errkind.New(errkind.ErrInvalidArgument, op, "conversion from %s is not supported", from)
	}
	data, _ := src.Data()
	w, h := src.image.Width, src.image.Height
	bpp := int64(from.BitsPerPixel() / 8)
	stride := w*bpp + src.image.PaddingX
	if need := stride * h; int64(len(data)) < need {
		return nil, errkind.New(errkind.ErrOutOfRange, op, "frame %d holds %d image bytes, %dx%d %s needs %d",
			src.frameID, len(data), w, h, from, need)
	}

	order := byteOrder(src.image.Endianness)
	pixels := w * h
	in := make([]uint32, pixels)
	for y := int64(0); y < h; y++ {
		line := data[y*stride:]
		for x := int64(0); x < w; x++ {
			if bpp == 1 {
				in[y*w+x] = uint32(line[x])
			} else {
				in[y*w+x] = uint32(order.Uint16(line[2*x:]))
			}
		}
	}
	if from.IsBayer() {
		in = demosaicMono(in, int(w), int(h))
	}

	shift := to.Depth() - from.Depth()
	out := make([]byte, pixels*int64(to.BitsPerPixel()/8))
	for i, v := range in {
		if shift >= 0 {
			v <<= uint(shift)
		} else {
			v >>= uint(-shift)
		}
		if to == pixelformat.Mono8 {
			out[i] = byte(v)
		} else {
			binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
		}
	}

	img := src.image
	img.PixelFormat = to
	img.Endianness = LittleEndian
	img.PaddingX, img.PaddingY = 0, 0
	img.Data = out
	b := &Buffer{mem: out, deviceName: src.deviceName}
	b.Fill(&Frame{FrameID: src.frameID, TimestampNs: src.timestampNs, Image: img, Incomplete: src.incomplete})
	return f.track(b), nil
}

// Destroy releases a caller-owned buffer. Destroying a buffer twice fails
// with ErrIllegalState; engine buffers are rejected with ErrTypeMismatch.
func (f *Factory) Destroy(b *Buffer) error {
	const op = "Factory.Destroy"
	if b == nil {
		return errkind.New(errkind.ErrInvalidArgument, op, "nil buffer")
	}
	if b.origin != OriginFactory {
		return errkind.New(errkind.ErrTypeMismatch, op, "buffer of frame %d belongs to an acquisition pool; requeue it instead", b.frameID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.destroyed {
		return errkind.New(errkind.ErrIllegalState, op, "buffer of frame %d was already destroyed", b.frameID)
	}
	if _, ok := f.live[b]; !ok {
		return errkind.New(errkind.ErrNotFound, op, "buffer of frame %d was not created by this factory", b.frameID)
	}
	delete(f.live, b)
	b.destroyed = true
	b.mem = nil
	b.sizeFilled = 0
	b.lazyMu.Lock()
	b.chunkIndex = nil
	b.chunkGraph = nil
	b.lazyMu.Unlock()
	return nil
}

func (f *Factory) usable(op string, b *Buffer) error {
	if b == nil {
		return errkind.New(errkind.ErrInvalidArgument, op, "nil buffer")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.destroyed {
		return errkind.New(errkind.ErrIllegalState, op, "buffer of frame %d was destroyed", b.frameID)
	}
	return nil
}

func imageBytes(img Image) int64 {
	bits := img.Width * int64(img.PixelFormat.BitsPerPixel())
	line := (bits+7)/8 + img.PaddingX
	return line*img.Height + img.PaddingY
}

func byteOrder(e Endianness) binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// demosaicMono replaces every pixel by the mean of its 2x2 mosaic cell.
func demosaicMono(in []uint32, w, h int) []uint32 {
	out := make([]uint32, len(in))
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x += 2 {
			var sum, n uint32
			for dy := 0; dy < 2 && y+dy < h; dy++ {
				for dx := 0; dx < 2 && x+dx < w; dx++ {
					sum += in[(y+dy)*w+x+dx]
					n++
				}
			}
			for dy := 0; dy < 2 && y+dy < h; dy++ {
				for dx := 0; dx < 2 && x+dx < w; dx++ {
					out[(y+dy)*w+x+dx] = sum / n
				}
			}
		}
	}
	return out
}
