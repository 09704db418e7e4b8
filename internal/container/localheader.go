package container

import (
	"fmt"
	"io"

	"github.com/go-zipkit/zipkit/internal/cp437"
	"github.com/go-zipkit/zipkit/internal/extrafield"
)

// LocalFileHeader is one decoded Local File Header, as stored immediately
// before an entry's payload.
type LocalFileHeader struct {
	VersionNeeded    uint16
	Flags            uint16
	Method           uint16
	ModTime          uint16
	ModDate          uint16
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	NameRaw          []byte
	Name             string
	Extras           []extrafield.Field

	// HeaderLen is the total size in bytes of the fixed header plus name
	// plus extra fields, i.e. the offset of the payload relative to the
	// start of the header.
	HeaderLen int64
}

// ReadLocalHeader parses the Local File Header located at offset.
func ReadLocalHeader(r io.ReaderAt, offset int64) (LocalFileHeader, error) {
	var fixed [localHeaderFixedLen]byte
	if _, err := r.ReadAt(fixed[:], offset); err != nil {
		return LocalFileHeader{}, fmt.Errorf("%w: reading local header: %v", ErrFormat, err)
	}
	if le32(fixed[:4]) != SigLocalFile {
		return LocalFileHeader{}, fmt.Errorf("%w: bad local file header signature", ErrFormat)
	}

	h := LocalFileHeader{
		VersionNeeded:    le16(fixed[4:]),
		Flags:            le16(fixed[6:]),
		Method:           le16(fixed[8:]),
		ModTime:          le16(fixed[10:]),
		ModDate:          le16(fixed[12:]),
		CRC32:            le32(fixed[14:]),
		CompressedSize:   uint64(le32(fixed[18:])),
		UncompressedSize: uint64(le32(fixed[22:])),
	}
	nameLen := int(le16(fixed[26:]))
	extraLen := int(le16(fixed[28:]))

	rest := make([]byte, nameLen+extraLen)
	if _, err := r.ReadAt(rest, offset+localHeaderFixedLen); err != nil && err != io.EOF {
		return LocalFileHeader{}, fmt.Errorf("%w: reading local header name/extra: %v", ErrFormat, err)
	}
	nameRaw := rest[:nameLen]
	extraRaw := rest[nameLen:]

	h.NameRaw = nameRaw
	if h.Flags&UTF8Flag != 0 {
		h.Name = string(nameRaw)
	} else {
		h.Name = cp437.Decode(nameRaw)
	}

	presence := extrafield.Zip64Presence{
		UncompressedSize: h.UncompressedSize == uint32max,
		CompressedSize:   h.CompressedSize == uint32max,
	}
	for _, raw := range extrafield.ParseBlocks(extraRaw) {
		if raw.ID == extrafield.IDZip64 {
			z, err := extrafield.DecodeZip64(raw.Payload, presence)
			if err != nil {
				return LocalFileHeader{}, fmt.Errorf("%w: %w", ErrFormat, err)
			}
			if presence.UncompressedSize {
				h.UncompressedSize = z.UncompressedSize
			}
			if presence.CompressedSize {
				h.CompressedSize = z.CompressedSize
			}
			continue
		}
		field, err := extrafield.Decode(raw.ID, raw.Payload, extrafield.Local)
		if err != nil {
			return LocalFileHeader{}, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		h.Extras = append(h.Extras, field)
	}

	h.HeaderLen = localHeaderFixedLen + int64(nameLen) + int64(extraLen)
	return h, nil
}

// VerifyAgainstCentral cross-checks a Local File Header against its
// Central Directory counterpart. When the data-descriptor bit is set the
// local header's CRC32/sizes are defined to be zero and must be skipped;
// otherwise they must agree exactly, since a non-matching pair means the
// archive was corrupted or hand-edited inconsistently.
func (h LocalFileHeader) VerifyAgainstCentral(cd CentralDirEntry) error {
	if h.Flags&DataDescriptorFlag != 0 {
		return nil
	}
	if h.CRC32 != cd.CRC32 {
		return fmt.Errorf("%w: local/central CRC32 mismatch for %q", ErrFormat, cd.Name)
	}
	if h.CompressedSize != cd.CompressedSize {
		return fmt.Errorf("%w: local/central compressed size mismatch for %q", ErrFormat, cd.Name)
	}
	if h.UncompressedSize != cd.UncompressedSize {
		return fmt.Errorf("%w: local/central uncompressed size mismatch for %q", ErrFormat, cd.Name)
	}
	return nil
}

// BuildLocalHeader encodes a Local File Header. When useDescriptor is true,
// crc32/compressedSize/uncompressedSize are written as zero and the real
// values are expected to follow the payload in a data descriptor.
//
// When useDescriptor is false and either size exceeds what the 32-bit
// fields can hold, BuildLocalHeader transparently promotes the header: the
// size fields are written as the ZIP64 sentinel and a ZIP64 extra (0x0001)
// carrying the true 64-bit values is prepended to extra, mirroring the
// promotion BuildCentralDirEntry performs for the Central Directory Header.
func BuildLocalHeader(versionNeeded, flags, method, modTime, modDate uint16, crc32 uint32, compressedSize, uncompressedSize uint64, nameRaw []byte, extra []byte, useDescriptor bool) []byte {
	if !useDescriptor && NeedsZip64(compressedSize, uncompressedSize, 0) {
		presence := extrafield.Zip64Presence{UncompressedSize: true, CompressedSize: true}
		z := extrafield.Zip64{UncompressedSize: uncompressedSize, CompressedSize: compressedSize}
		extra = append(extrafield.EncodeBlock(extrafield.IDZip64, extrafield.EncodeZip64(z, presence)), extra...)
		compressedSize, uncompressedSize = uint32max, uint32max
		if versionNeeded < Version45 {
			versionNeeded = Version45
		}
	}

	buf := make([]byte, localHeaderFixedLen+len(nameRaw)+len(extra))
	w := writeBuf(buf)
	w.uint32(SigLocalFile)
	w.uint16(versionNeeded)
	w.uint16(flags)
	w.uint16(method)
	w.uint16(modTime)
	w.uint16(modDate)
	if useDescriptor {
		w.uint32(0)
		w.uint32(0)
		w.uint32(0)
	} else {
		w.uint32(crc32)
		w.uint32(lowOrMax32(compressedSize))
		w.uint32(lowOrMax32(uncompressedSize))
	}
	w.uint16(uint16(len(nameRaw)))
	w.uint16(uint16(len(extra)))
	copy(w, nameRaw)
	w = w[len(nameRaw):]
	copy(w, extra)
	return buf
}

func lowOrMax32(v uint64) uint32 {
	if v >= uint32max {
		return uint32max
	}
	return uint32(v)
}
