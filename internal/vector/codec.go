package vector

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

// Compression selects how the row payload is stored on disk.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionZstd Compression = 1
	CompressionLZ4  Compression = 2
)

// ParseCompression maps a config value ("", "none", "zstd", "lz4") to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (supported: none, zstd, lz4)", s)
	}
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

var magic = [4]byte{'M', 'L', 'V', 'X'}

const formatVersion uint16 = 1

// maxDimensions bounds the header's vector length.
const maxDimensions = 1 << 20

// Header describes an encoded store.
type Header struct {
	Version     uint16
	Compression Compression
	Generation  [16]byte
	Dimensions  int
	Rows        int
}

// Encode writes the store to w. Format (little endian): magic, version (2),
// compression (1), generation (16), dimensions (4), rows (8), payload length (8),
// payload, xxhash64 of the uncompressed payload (8).
func Encode(w io.Writer, s *Store, compression Compression, generation [16]byte) error {
	s.mu.RLock()
	raw := float32SliceToBytes(s.data[:s.rows*s.dimensions])
	hdr := Header{
		Version:     formatVersion,
		Compression: compression,
		Generation:  generation,
		Dimensions:  s.dimensions,
		Rows:        s.rows,
	}
	s.mu.RUnlock()

	payload, err := compress(raw, compression)
	if err != nil {
		return fmt.Errorf("compress payload: %w", err)
	}
	if err := writeHeader(w, hdr); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(payload))); err != nil {
		return fmt.Errorf("write payload length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, xxhash.Sum64(raw)); err != nil {
		return fmt.Errorf("write checksum: %w", err)
	}
	return nil
}

// Decode reads a store written by Encode. Any structural problem is reported
// as ErrCorruptIndex.
func Decode(r io.Reader) (*Store, Header, error) {
	hdr, err := readHeader(r)
	if err != nil {
		return nil, Header{}, corrupt(err, "read header")
	}
	if hdr.Dimensions <= 0 || hdr.Dimensions > maxDimensions {
		return nil, hdr, corrupt(fmt.Errorf("dimensions %d", hdr.Dimensions), "invalid header")
	}
	// Rows fit in int32 and dimensions in 2^20, so this cannot overflow.
	rawLen := uint64(hdr.Rows) * uint64(hdr.Dimensions) * 4

	var payloadLen uint64
	if err := binary.Read(r, binary.LittleEndian, &payloadLen); err != nil {
		return nil, hdr, corrupt(err, "read payload length")
	}
	// Incompressible data may grow slightly under either codec.
	if payloadLen > rawLen+rawLen/8+1024 {
		return nil, hdr, corrupt(fmt.Errorf("payload length %d exceeds %d rows", payloadLen, hdr.Rows), "invalid payload length")
	}
	if hdr.Compression == CompressionNone && payloadLen != rawLen {
		return nil, hdr, corrupt(fmt.Errorf("payload length %d, want %d", payloadLen, rawLen), "invalid payload length")
	}
	// Buffers grow with the bytes actually present, never with the header's claim.
	payload, err := io.ReadAll(io.LimitReader(r, int64(payloadLen)))
	if err != nil {
		return nil, hdr, corrupt(err, "read payload")
	}
	if uint64(len(payload)) != payloadLen {
		return nil, hdr, corrupt(io.ErrUnexpectedEOF, "read payload")
	}
	raw, err := decompress(payload, hdr.Compression, rawLen)
	if err != nil {
		return nil, hdr, corrupt(err, "decompress payload")
	}
	if uint64(len(raw)) != rawLen {
		return nil, hdr, corrupt(fmt.Errorf("got %d bytes, want %d", len(raw), rawLen), "payload size mismatch")
	}
	var sum uint64
	if err := binary.Read(r, binary.LittleEndian, &sum); err != nil {
		return nil, hdr, corrupt(err, "read checksum")
	}
	if sum != xxhash.Sum64(raw) {
		return nil, hdr, corrupt(fmt.Errorf("checksum %x", sum), "checksum mismatch")
	}

	return &Store{
		dimensions: hdr.Dimensions,
		data:       bytesToFloat32Slice(raw),
		rows:       hdr.Rows,
	}, hdr, nil
}

// ReadHeader reads only the header of an encoded store.
func ReadHeader(r io.Reader) (Header, error) {
	hdr, err := readHeader(r)
	if err != nil {
		return Header{}, corrupt(err, "read header")
	}
	return hdr, nil
}

func writeHeader(w io.Writer, hdr Header) error {
	buf := make([]byte, 0, 4+2+1+16+4+8)
	buf = append(buf, magic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, hdr.Version)
	buf = append(buf, byte(hdr.Compression))
	buf = append(buf, hdr.Generation[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(hdr.Dimensions))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(hdr.Rows))
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func readHeader(r io.Reader) (Header, error) {
	buf := make([]byte, 4+2+1+16+4+8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, err
	}
	if !bytes.Equal(buf[:4], magic[:]) {
		return Header{}, fmt.Errorf("bad magic %q", buf[:4])
	}
	var hdr Header
	hdr.Version = binary.LittleEndian.Uint16(buf[4:6])
	if hdr.Version != formatVersion {
		return Header{}, fmt.Errorf("unsupported format version %d", hdr.Version)
	}
	hdr.Compression = Compression(buf[6])
	copy(hdr.Generation[:], buf[7:23])
	hdr.Dimensions = int(binary.LittleEndian.Uint32(buf[23:27]))
	rows := binary.LittleEndian.Uint64(buf[27:35])
	if rows > math.MaxInt32 {
		return Header{}, fmt.Errorf("row count %d out of range", rows)
	}
	hdr.Rows = int(rows)
	return hdr, nil
}

func compress(raw []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return raw, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown compression %d", uint8(c))
	}
}

// decompress inflates payload to at most rawLen bytes. Output beyond rawLen is
// an error; a short result is left to the caller to reject.
func decompress(payload []byte, c Compression, rawLen uint64) ([]byte, error) {
	switch c {
	case CompressionNone:
		return payload, nil
	case CompressionZstd:
		window := min(max(rawLen, zstd.MinWindowSize), zstd.MaxWindowSize)
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderMaxMemory(max(rawLen, 1)),
			zstd.WithDecoderMaxWindow(window),
			zstd.WithDecoderConcurrency(1),
		)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(payload, nil)
	case CompressionLZ4:
		out, err := io.ReadAll(io.LimitReader(lz4.NewReader(bytes.NewReader(payload)), int64(rawLen)+1))
		if err != nil {
			return nil, err
		}
		if uint64(len(out)) > rawLen {
			return nil, fmt.Errorf("decompressed payload exceeds %d bytes", rawLen)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression %d", uint8(c))
	}
}

func corrupt(err error, msg string) error {
	return lenserr.Mark(err, lenserr.ErrCorruptIndex, lenserr.CodePersistenceCorrupt, msg)
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
