package container

import (
	"errors"
	"io"

	"github.com/go-zipkit/zipkit/internal/extrafield"
)

// CentralDirEntryOut is the information needed to emit one Central
// Directory Header. Extra must already contain every extra field the
// caller wants on disk except the ZIP64 field, which BuildCentralDirEntry
// appends itself when promotion is required.
type CentralDirEntryOut struct {
	VersionMadeBy    uint16
	VersionNeeded    uint16
	Flags            uint16
	Method           uint16
	ModTime          uint16
	ModDate          uint16
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	NameRaw          []byte
	Extra            []byte
	Comment          string
	ExternalAttrs    uint32
	InternalAttrs    uint16
	Offset           uint64
}

// NeedsZip64 reports whether any of an entry's fields require ZIP64
// promotion, i.e. exceed what the 32-bit Central Directory fields can
// represent.
func NeedsZip64(compressedSize, uncompressedSize, offset uint64) bool {
	return compressedSize >= uint32max || uncompressedSize >= uint32max || offset >= uint32max
}

// BuildCentralDirEntry encodes and writes one Central Directory Header,
// transparently promoting to ZIP64 when any field overflows 32 bits.
func BuildCentralDirEntry(w io.Writer, e CentralDirEntryOut) error {
	versionNeeded := e.VersionNeeded
	extra := e.Extra
	compressed32, uncompressed32, offset32 := uint32(e.CompressedSize), uint32(e.UncompressedSize), uint32(e.Offset)

	if NeedsZip64(e.CompressedSize, e.UncompressedSize, e.Offset) {
		presence := extrafield.Zip64Presence{
			UncompressedSize: true,
			CompressedSize:   true,
			Offset:           true,
		}
		z := extrafield.Zip64{
			UncompressedSize: e.UncompressedSize,
			CompressedSize:   e.CompressedSize,
			Offset:           e.Offset,
		}
		extra = append(append([]byte(nil), extra...), extrafield.EncodeBlock(extrafield.IDZip64, extrafield.EncodeZip64(z, presence))...)
		compressed32, uncompressed32, offset32 = uint32max, uint32max, uint32max
		if versionNeeded < Version45 {
			versionNeeded = Version45
		}
	}

	if len(e.NameRaw) > uint16max {
		return errLongName
	}
	if len(extra) > uint16max {
		return errLongExtra
	}
	if len(e.Comment) > uint16max {
		return errLongComment
	}

	buf := make([]byte, centralHeaderFixedLen)
	b := writeBuf(buf)
	b.uint32(SigCentralDir)
	b.uint16(e.VersionMadeBy)
	b.uint16(versionNeeded)
	b.uint16(e.Flags)
	b.uint16(e.Method)
	b.uint16(e.ModTime)
	b.uint16(e.ModDate)
	b.uint32(e.CRC32)
	b.uint32(compressed32)
	b.uint32(uncompressed32)
	b.uint16(uint16(len(e.NameRaw)))
	b.uint16(uint16(len(extra)))
	b.uint16(uint16(len(e.Comment)))
	b.uint16(0) // disk number start: zipkit only ever writes single-disk archives
	b.uint16(e.InternalAttrs)
	b.uint32(e.ExternalAttrs)
	b.uint32(offset32)
	if _, err := w.Write(buf); err != nil {
		return err
	}
	if _, err := w.Write(e.NameRaw); err != nil {
		return err
	}
	if _, err := w.Write(extra); err != nil {
		return err
	}
	_, err := io.WriteString(w, e.Comment)
	return err
}

var (
	errLongName    = errors.New("container: entry name too long")
	errLongExtra   = errors.New("container: extra field block too long")
	errLongComment = errors.New("container: comment too long")
)

// WriteEOCD writes the Central Directory's terminating records: a ZIP64
// End Of Central Directory record plus locator when the entry count or any
// offset/size exceeds the 32-bit record's range, followed always by the
// classic 32-bit End Of Central Directory record (with ZIP64 sentinel
// values when promoted).
func WriteEOCD(w io.Writer, cdOffset uint64, cdSize uint64, count uint64, comment []byte) error {
	if len(comment) > uint16max {
		return errLongComment
	}

	records, size, offset := count, cdSize, cdOffset
	if count >= uint16max || cdSize >= uint32max || cdOffset >= uint32max {
		end := cdOffset + cdSize
		buf := make([]byte, zip64EOCDFixedLen+zip64LocatorLen)
		b := writeBuf(buf)
		b.uint32(SigZip64EOCD)
		b.uint64(zip64EOCDFixedLen - 12)
		b.uint16(Version45)
		b.uint16(Version45)
		b.uint32(0)
		b.uint32(0)
		b.uint64(count)
		b.uint64(count)
		b.uint64(cdSize)
		b.uint64(cdOffset)

		b.uint32(SigZip64Locator)
		b.uint32(0)
		b.uint64(end)
		b.uint32(1)

		if _, err := w.Write(buf); err != nil {
			return err
		}
		records, size, offset = uint16max, uint32max, uint32max
	}

	buf := make([]byte, eocdFixedLen)
	b := writeBuf(buf)
	b.uint32(SigEOCD)
	b.uint16(0)
	b.uint16(0)
	b.uint16(uint16(records))
	b.uint16(uint16(records))
	b.uint32(uint32(size))
	b.uint32(uint32(offset))
	b.uint16(uint16(len(comment)))
	if _, err := w.Write(buf); err != nil {
		return err
	}
	_, err := w.Write(comment)
	return err
}
