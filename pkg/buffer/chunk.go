package buffer

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"math"

	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/node"
	"github.com/zacpullen/arena-api/pkg/nodemap"
)

const (
	// ChunkIDImage is the chunk id of the image data in an extended chunk
	// payload.
	ChunkIDImage uint32 = 0
	// ChunkIDCRC is the chunk carrying the CRC32 of the image data.
	ChunkIDCRC uint32 = 0x0000000C

	chunkTrailer = 8
)

// Chunk is one chunk of a chunk data payload.
type Chunk struct {
	ID   uint32
	Data []byte
}

// CRCChunk returns the CRC chunk for image.
func CRCChunk(image []byte) Chunk {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, crc32.ChecksumIEEE(image))
	return Chunk{ID: ChunkIDCRC, Data: data}
}

// encodePayload lays the frame out as it travels in a GigE Vision
// payload: image only, or chunk records [data][id][length] with the
// image as chunk 0. Ids and lengths are big endian.
func encodePayload(f *Frame) []byte {
	pt := f.payloadType()
	if !pt.HasChunks() {
		return f.Image.Data
	}
	var buf bytes.Buffer
	if pt.HasImage() {
		writeChunk(&buf, Chunk{ID: ChunkIDImage, Data: f.Image.Data})
	}
	for _, c := range f.Chunks {
		writeChunk(&buf, c)
	}
	return buf.Bytes()
}

func writeChunk(buf *bytes.Buffer, c Chunk) {
	var trailer [chunkTrailer]byte
	buf.Write(c.Data)
	binary.BigEndian.PutUint32(trailer[0:4], c.ID)
	binary.BigEndian.PutUint32(trailer[4:8], uint32(len(c.Data)))
	buf.Write(trailer[:])
}

// parseChunks walks the chunk records from the end of the payload. A
// malformed trailer ends the walk; the chunks found so far are kept.
func parseChunks(payload []byte) map[uint32][]byte {
	chunks := make(map[uint32][]byte)
	end := len(payload)
	for end >= chunkTrailer {
		id := binary.BigEndian.Uint32(payload[end-8 : end-4])
		n := int(binary.BigEndian.Uint32(payload[end-4 : end]))
		start := end - chunkTrailer - n
		if start < 0 {
			break
		}
		if _, dup := chunks[id]; !dup {
			chunks[id] = payload[start : end-chunkTrailer]
		}
		end = start
	}
	return chunks
}

func (b *Buffer) chunks() map[uint32][]byte {
	b.lazyMu.Lock()
	defer b.lazyMu.Unlock()
	if b.chunkIndex == nil {
		b.chunkIndex = parseChunks(b.Payload())
	}
	return b.chunkIndex
}

// ChunkData returns the raw data of the chunk with id.
func (b *Buffer) ChunkData(id uint32) ([]byte, error) {
	if !b.HasChunkData() {
		return nil, errkind.New(errkind.ErrIllegalState, "Buffer.ChunkData", "payload type %s has no chunk data", b.payloadType)
	}
	data, ok := b.chunks()[id]
	if !ok {
		return nil, errkind.New(errkind.ErrNotFound, "Buffer.ChunkData", "no chunk 0x%X in frame %d", id, b.frameID)
	}
	return data, nil
}

// IsValidCRC checks the CRC chunk against the image data. It fails with
// ErrNotAvailable when the payload has no CRC chunk.
func (b *Buffer) IsValidCRC() (bool, error) {
	const op = "Buffer.IsValidCRC"
	if !b.HasChunkData() || !b.HasImageData() {
		return false, errkind.New(errkind.ErrNotAvailable, op, "payload type %s carries no CRC", b.payloadType)
	}
	sum, ok := b.chunks()[ChunkIDCRC]
	if !ok || len(sum) < 4 {
		return false, errkind.New(errkind.ErrNotAvailable, op, "frame %d has no CRC chunk", b.frameID)
	}
	img, ok := b.chunks()[ChunkIDImage]
	if !ok {
		return false, nil
	}
	return crc32.ChecksumIEEE(img) == binary.LittleEndian.Uint32(sum), nil
}

// ChunkGraph returns the chunk node map of the buffer. Chunk node values
// are read from the current payload on every access.
func (b *Buffer) ChunkGraph() (*nodemap.Graph, error) {
	const op = "Buffer.ChunkGraph"
	if !b.HasChunkData() {
		return nil, errkind.New(errkind.ErrIllegalState, op, "payload type %s has no chunk data", b.payloadType)
	}
	b.lazyMu.Lock()
	cached := b.chunkGraph
	b.lazyMu.Unlock()
	if cached != nil {
		return cached, nil
	}
	if len(b.chunkDefs) == 0 {
		return nil, errkind.New(errkind.ErrNotAvailable, op, "device %s declares no chunk nodes", b.deviceName)
	}

	defs := make([]node.Definition, len(b.chunkDefs))
	for i, d := range b.chunkDefs {
		d.Access = "RO"
		d.Caching = "NoCache"
		d.Feature = true
		d.Children = nil
		d.Selected = nil
		d.Invalidates = nil
		d.Alias = ""
		d.CastAlias = ""
		defs[i] = d
	}
	g, err := nodemap.New(node.ScopeChunk, b.deviceName, defs)
	if err != nil {
		return nil, err
	}
	for _, d := range defs {
		if err := g.Bind(d.Name, b.chunkValue(d)); err != nil {
			return nil, err
		}
	}
	b.lazyMu.Lock()
	defer b.lazyMu.Unlock()
	if b.chunkGraph == nil {
		b.chunkGraph = g
	}
	return b.chunkGraph, nil
}

// chunkValue reads a chunk node. Address and Length of the definition
// select a byte range inside the chunk; a zero Length takes the rest.
func (b *Buffer) chunkValue(d node.Definition) node.ValueFunc {
	return func() (any, error) {
		data, err := b.ChunkData(d.ChunkID)
		if err != nil {
			return nil, err
		}
		lo := int(d.Address)
		hi := len(data)
		if d.Length > 0 {
			hi = lo + int(d.Length)
		}
		if lo < 0 || hi > len(data) || lo > hi {
			return nil, errkind.New(errkind.ErrOutOfRange, "Buffer.Chunk",
				"%s reads [%d, %d) of a %d byte chunk", d.Name, lo, hi, len(data))
		}
		return decodeChunkValue(d.Type, data[lo:hi])
	}
}

func decodeChunkValue(typ string, raw []byte) (any, error) {
	it, err := node.ParseInterfaceType(typ)
	if err != nil {
		return nil, err
	}
	switch it {
	case node.InterfaceInteger, node.InterfaceEnumeration, node.InterfaceBoolean:
		v, err := decodeInt(raw)
		if err != nil {
			return nil, err
		}
		if it == node.InterfaceBoolean {
			return v != 0, nil
		}
		return v, nil
	case node.InterfaceFloat:
		switch len(raw) {
		case 4:
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw))), nil
		case 8:
			return math.Float64frombits(binary.LittleEndian.Uint64(raw)), nil
		}
		return nil, errkind.New(errkind.ErrTypeMismatch, "Buffer.Chunk", "%d bytes cannot hold a float", len(raw))
	case node.InterfaceString:
		return string(bytes.TrimRight(raw, "\x00")), nil
	case node.InterfaceRegister:
		return bytes.Clone(raw), nil
	}
	return nil, errkind.New(errkind.ErrTypeMismatch, "Buffer.Chunk", "chunk node of type %s holds no value", it)
}

func decodeInt(raw []byte) (int64, error) {
	switch len(raw) {
	case 1:
		return int64(raw[0]), nil
	case 2:
		return int64(binary.LittleEndian.Uint16(raw)), nil
	case 4:
		return int64(binary.LittleEndian.Uint32(raw)), nil
	case 8:
		return int64(binary.LittleEndian.Uint64(raw)), nil
	}
	return 0, errkind.New(errkind.ErrTypeMismatch, "Buffer.Chunk", "%d bytes cannot hold an integer", len(raw))
}

// Chunk resolves a chunk node by name, e.g. "ChunkWidth".
func (b *Buffer) Chunk(name string) (node.Feature, error) {
	g, err := b.ChunkGraph()
	if err != nil {
		return nil, err
	}
	return g.Resolve(name)
}

// Chunks resolves several chunk nodes and fails on the first miss.
func (b *Buffer) Chunks(names ...string) (map[string]node.Feature, error) {
	g, err := b.ChunkGraph()
	if err != nil {
		return nil, err
	}
	return g.ResolveMany(names...)
}
