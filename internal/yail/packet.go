package yail

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Version is the protocol version stamped into every packet header.
var Version = [3]byte{1, 4, 0}

// BlockType tags the payload of a Block.
type BlockType uint8

const (
	// BlockPalette carries 256 RGB triples.
	BlockPalette BlockType = 0x06
	// BlockImage carries packed pixel data.
	BlockImage BlockType = 0x07
)

func (t BlockType) String() string {
	switch t {
	case BlockPalette:
		return "palette"
	case BlockImage:
		return "image"
	}
	return fmt.Sprintf("block(0x%02x)", uint8(t))
}

const (
	headerSize      = 5
	blockHeaderSize = 5

	// MaxBlockSize bounds block payloads accepted by ReadPacket.
	MaxBlockSize = 1 << 20
)

// ErrMalformedPacket is returned by ReadPacket for inconsistent framing.
var ErrMalformedPacket = errors.New("malformed packet")

// Block is one typed, length-prefixed payload of a Packet.
type Block struct {
	Type BlockType
	Data []byte
}

// Packet is a framed image response.
//
// On the wire a packet is a five byte header (three version bytes, the mode
// id and the block count) followed by each block as a type byte, a
// little-endian uint32 payload length and the payload itself.
type Packet struct {
	Version [3]byte
	Mode    Mode
	Blocks  []Block
}

// Size returns the number of bytes MarshalBinary produces.
func (p *Packet) Size() int {
	n := headerSize
	for _, b := range p.Blocks {
		n += blockHeaderSize + len(b.Data)
	}
	return n
}

// Block returns the payload of the first block of type t.
func (p *Packet) Block(t BlockType) ([]byte, bool) {
	for _, b := range p.Blocks {
		if b.Type == t {
			return b.Data, true
		}
	}
	return nil, false
}

// MarshalBinary encodes the packet into a single buffer.
func (p *Packet) MarshalBinary() ([]byte, error) {
	if len(p.Blocks) > math.MaxUint8 {
		return nil, fmt.Errorf("packet has %d blocks, limit is %d", len(p.Blocks), math.MaxUint8)
	}

	buf := make([]byte, 0, p.Size())
	buf = append(buf, p.Version[:]...)
	buf = append(buf, byte(p.Mode), byte(len(p.Blocks)))
	for _, b := range p.Blocks {
		if uint64(len(b.Data)) > math.MaxUint32 {
			return nil, fmt.Errorf("%s block of %d bytes exceeds length field", b.Type, len(b.Data))
		}
		buf = append(buf, byte(b.Type))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b.Data)))
		buf = append(buf, b.Data...)
	}
	return buf, nil
}

// WriteTo marshals the packet and writes it with a single Write call, so a
// failed marshal never leaves partial output on w.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	buf, err := p.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(buf)
	return int64(n), err
}

// ReadPacket reads one framed packet from r.
func ReadPacket(r io.Reader) (*Packet, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read packet header: %w", err)
	}

	p := &Packet{Mode: Mode(hdr[3])}
	copy(p.Version[:], hdr[:3])
	count := int(hdr[4])
	p.Blocks = make([]Block, 0, count)

	for i := 0; i < count; i++ {
		var bh [blockHeaderSize]byte
		if _, err := io.ReadFull(r, bh[:]); err != nil {
			return nil, fmt.Errorf("read block %d header: %w", i, err)
		}
		size := binary.LittleEndian.Uint32(bh[1:])
		if size > MaxBlockSize {
			return nil, fmt.Errorf("%w: block %d claims %d bytes", ErrMalformedPacket, i, size)
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("read block %d payload: %w", i, err)
		}
		p.Blocks = append(p.Blocks, Block{Type: BlockType(bh[0]), Data: data})
	}
	return p, nil
}
