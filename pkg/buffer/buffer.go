package buffer

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/node"
	"github.com/zacpullen/arena-api/pkg/nodemap"
	"github.com/zacpullen/arena-api/pkg/pixelformat"
)

// PayloadType is the GigE Vision payload type of a buffer.
type PayloadType uint16

const (
	PayloadImage              PayloadType = 0x0001
	PayloadChunkData          PayloadType = 0x0004
	PayloadImageExtendedChunk PayloadType = 0x4001
)

func (p PayloadType) String() string {
	switch p {
	case PayloadImage:
		return "Image"
	case PayloadChunkData:
		return "ChunkData"
	case PayloadImageExtendedChunk:
		return "ImageExtendedChunk"
	}
	return fmt.Sprintf("PayloadType(0x%04X)", uint16(p))
}

// HasImage reports whether the payload carries image data.
func (p PayloadType) HasImage() bool {
	return p == PayloadImage || p == PayloadImageExtendedChunk
}

// HasChunks reports whether the payload carries chunk data.
func (p PayloadType) HasChunks() bool {
	return p == PayloadChunkData || p == PayloadImageExtendedChunk
}

// Endianness is the byte order of multi-byte pixels.
type Endianness uint8

const (
	LittleEndian Endianness = iota
	BigEndian
)

func (e Endianness) String() string {
	if e == BigEndian {
		return "BigEndian"
	}
	return "LittleEndian"
}

// Origin tells who owns a buffer's memory.
type Origin uint8

const (
	// OriginEngine buffers belong to an acquisition pool. They are valid
	// from retrieval until requeue or until the stream stops.
	OriginEngine Origin = iota
	// OriginFactory buffers are owned by the caller and must be destroyed
	// exactly once.
	OriginFactory
)

func (o Origin) String() string {
	if o == OriginFactory {
		return "Factory"
	}
	return "Engine"
}

// Image describes the image part of a payload.
type Image struct {
	Width, Height      int64
	OffsetX, OffsetY   int64
	PaddingX, PaddingY int64
	PixelFormat        pixelformat.Format
	Endianness         Endianness
	Data               []byte
}

// Frame is one payload as delivered by a frame source.
type Frame struct {
	FrameID     uint64
	TimestampNs uint64

	// PayloadType is derived from Image and Chunks when zero.
	PayloadType PayloadType
	Image       Image
	Chunks      []Chunk

	// Incomplete marks frames with missing packets.
	Incomplete bool
}

func (f *Frame) payloadType() PayloadType {
	switch {
	case f.PayloadType != 0:
		return f.PayloadType
	case len(f.Chunks) == 0:
		return PayloadImage
	case len(f.Image.Data) == 0:
		return PayloadChunkData
	}
	return PayloadImageExtendedChunk
}

// Layout configures the buffers of one acquisition pool.
type Layout struct {
	// Session identifies the stream the pool belongs to.
	Session uuid.UUID
	// Size is the allocated size of each buffer in bytes.
	Size int
	// DeviceName and Chunks describe the chunk data nodes of the device.
	DeviceName string
	Chunks     []node.Definition
}

// Buffer is one payload buffer. Engine buffers are recycled through an
// acquisition pool; reading one after requeue observes whatever frame the
// engine wrote into it since.
type Buffer struct {
	origin  Origin
	session uuid.UUID
	slot    int

	mem         []byte
	sizeFilled  int
	payloadSize int
	imageLen    int

	frameID     uint64
	timestampNs uint64
	payloadType PayloadType
	incomplete  bool
	truncated   bool
	image       Image

	deviceName string
	chunkDefs  []node.Definition

	// lazyMu guards the chunk caches built on first read.
	lazyMu     sync.Mutex
	chunkIndex map[uint32][]byte
	chunkGraph *nodemap.Graph

	destroyed bool
}

// Allocate creates n engine buffers of l.Size bytes each.
func Allocate(n int, l Layout) []*Buffer {
	bufs := make([]*Buffer, n)
	for i := range bufs {
		bufs[i] = &Buffer{
			origin:     OriginEngine,
			session:    l.Session,
			slot:       i,
			mem:        make([]byte, l.Size),
			deviceName: l.DeviceName,
			chunkDefs:  l.Chunks,
		}
	}
	return bufs
}

// Fill writes f into the buffer memory. A payload larger than the buffer
// is truncated and flagged as incomplete.
func (b *Buffer) Fill(f *Frame) {
	payload := encodePayload(f)
	n := copy(b.mem, payload)

	b.sizeFilled = n
	b.payloadSize = len(payload)
	b.truncated = n < len(payload)
	b.incomplete = f.Incomplete || b.truncated
	b.frameID = f.FrameID
	b.timestampNs = f.TimestampNs
	b.payloadType = f.payloadType()
	b.image = f.Image
	b.image.Data = nil
	b.imageLen = len(f.Image.Data)

	b.lazyMu.Lock()
	b.chunkIndex = nil
	b.lazyMu.Unlock()
}

// Origin returns who owns the buffer memory.
func (b *Buffer) Origin() Origin { return b.origin }

// Session returns the id of the stream an engine buffer belongs to.
func (b *Buffer) Session() uuid.UUID { return b.session }

// Slot returns the pool index of an engine buffer.
func (b *Buffer) Slot() int { return b.slot }

// SizeFilled returns the number of payload bytes written to the buffer.
func (b *Buffer) SizeFilled() int { return b.sizeFilled }

// PayloadSize returns the size of the payload as sent by the device.
func (b *Buffer) PayloadSize() int { return b.payloadSize }

// BufferSize returns the allocated size.
func (b *Buffer) BufferSize() int { return len(b.mem) }

// FrameID returns the frame id assigned by the device.
func (b *Buffer) FrameID() uint64 { return b.frameID }

// PayloadType returns the payload type.
func (b *Buffer) PayloadType() PayloadType { return b.payloadType }

// HasImageData reports whether the payload carries an image.
func (b *Buffer) HasImageData() bool { return b.payloadType.HasImage() }

// HasChunkData reports whether the payload carries chunk data.
func (b *Buffer) HasChunkData() bool { return b.payloadType.HasChunks() }

// IsIncomplete reports missing or truncated payload data.
func (b *Buffer) IsIncomplete() bool { return b.incomplete }

// IsDataLargerThanBuffer reports whether the payload was truncated.
func (b *Buffer) IsDataLargerThanBuffer() bool { return b.truncated }

// Payload returns the filled part of the buffer memory.
func (b *Buffer) Payload() []byte { return b.mem[:b.sizeFilled] }

func (b *Buffer) imageCheck(op string) error {
	if !b.HasImageData() {
		return errkind.New(errkind.ErrIllegalState, op, "payload type %s has no image data", b.payloadType)
	}
	return nil
}

// Width returns the image width in pixels.
func (b *Buffer) Width() (int64, error) {
	return b.image.Width, b.imageCheck("Buffer.Width")
}

// Height returns the image height in pixels.
func (b *Buffer) Height() (int64, error) {
	return b.image.Height, b.imageCheck("Buffer.Height")
}

// OffsetX returns the horizontal offset of the image region.
func (b *Buffer) OffsetX() (int64, error) {
	return b.image.OffsetX, b.imageCheck("Buffer.OffsetX")
}

// OffsetY returns the vertical offset of the image region.
func (b *Buffer) OffsetY() (int64, error) {
	return b.image.OffsetY, b.imageCheck("Buffer.OffsetY")
}

// PaddingX returns the number of padding bytes after each line.
func (b *Buffer) PaddingX() (int64, error) {
	return b.image.PaddingX, b.imageCheck("Buffer.PaddingX")
}

// PaddingY returns the number of padding bytes after the image.
func (b *Buffer) PaddingY() (int64, error) {
	return b.image.PaddingY, b.imageCheck("Buffer.PaddingY")
}

// PixelFormat returns the pixel format of the image.
func (b *Buffer) PixelFormat() (pixelformat.Format, error) {
	return b.image.PixelFormat, b.imageCheck("Buffer.PixelFormat")
}

// BitsPerPixel returns the bits per pixel of the image pixel format.
func (b *Buffer) BitsPerPixel() (int, error) {
	return b.image.PixelFormat.BitsPerPixel(), b.imageCheck("Buffer.BitsPerPixel")
}

// PixelEndianness returns the byte order of multi-byte pixels.
func (b *Buffer) PixelEndianness() (Endianness, error) {
	return b.image.Endianness, b.imageCheck("Buffer.PixelEndianness")
}

// TimestampNs returns the device timestamp of the image in nanoseconds.
func (b *Buffer) TimestampNs() (uint64, error) {
	return b.timestampNs, b.imageCheck("Buffer.TimestampNs")
}

// Data returns the image bytes. The slice aliases buffer memory and must
// not be used after the buffer is requeued or destroyed.
func (b *Buffer) Data() ([]byte, error) {
	if err := b.imageCheck("Buffer.Data"); err != nil {
		return nil, err
	}
	return b.mem[:min(b.imageLen, b.sizeFilled)], nil
}

func (b *Buffer) String() string {
	if !b.HasImageData() {
		return fmt.Sprintf("Buffer(frame %d, %s, %d bytes)", b.frameID, b.payloadType, b.sizeFilled)
	}
	return fmt.Sprintf("Buffer(frame %d, %dx%d %s, %d bytes)",
		b.frameID, b.image.Width, b.image.Height, b.image.PixelFormat, b.sizeFilled)
}
