package container

import (
	"fmt"
	"io"
)

// DataDescriptor is the optional record following an entry's payload when
// the data-descriptor general-purpose bit is set, letting a writer stamp
// CRC32 and sizes after streaming the payload instead of before it.
type DataDescriptor struct {
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
}

// ReadDataDescriptor parses a data descriptor at offset. Some writers omit
// the optional signature; both forms, and both the 32-bit and ZIP64
// (64-bit) size variants, are accepted.
func ReadDataDescriptor(r io.ReaderAt, offset int64, zip64 bool) (DataDescriptor, int64, error) {
	size := dataDescriptorLen32
	if zip64 {
		size = dataDescriptorLen64
	}
	buf := make([]byte, size+4) // +4 in case of the optional leading signature
	n, err := r.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return DataDescriptor{}, 0, fmt.Errorf("container: reading data descriptor: %w", err)
	}
	buf = buf[:n]

	hasSig := len(buf) >= 4 && le32(buf) == SigDataDescriptor
	if hasSig {
		buf = buf[4:]
	}
	if zip64 {
		if len(buf) < 20 {
			return DataDescriptor{}, 0, fmt.Errorf("%w: truncated ZIP64 data descriptor", ErrFormat)
		}
		d := DataDescriptor{
			CRC32:            le32(buf),
			CompressedSize:   le64(buf[4:]),
			UncompressedSize: le64(buf[12:]),
		}
		consumed := int64(20)
		if hasSig {
			consumed += 4
		}
		return d, consumed, nil
	}
	if len(buf) < 12 {
		return DataDescriptor{}, 0, fmt.Errorf("%w: truncated data descriptor", ErrFormat)
	}
	d := DataDescriptor{
		CRC32:            le32(buf),
		CompressedSize:   uint64(le32(buf[4:])),
		UncompressedSize: uint64(le32(buf[8:])),
	}
	consumed := int64(12)
	if hasSig {
		consumed += 4
	}
	return d, consumed, nil
}

// BuildDataDescriptor encodes a data descriptor. zipkit always writes the
// optional signature, since most tools expect it despite APPNOTE calling
// it optional, and always uses the 64-bit form when either size does not
// fit in 32 bits.
func BuildDataDescriptor(crc32 uint32, compressedSize, uncompressedSize uint64) []byte {
	if compressedSize > uint32max || uncompressedSize > uint32max {
		buf := make([]byte, 4+20)
		w := writeBuf(buf)
		w.uint32(SigDataDescriptor)
		w.uint32(crc32)
		w.uint64(compressedSize)
		w.uint64(uncompressedSize)
		return buf
	}
	buf := make([]byte, 4+12)
	w := writeBuf(buf)
	w.uint32(SigDataDescriptor)
	w.uint32(crc32)
	w.uint32(uint32(compressedSize))
	w.uint32(uint32(uncompressedSize))
	return buf
}
