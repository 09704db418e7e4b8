package container

import (
	"bufio"
	"fmt"
	"io"

	"github.com/go-zipkit/zipkit/internal/cp437"
	"github.com/go-zipkit/zipkit/internal/extrafield"
)

// UTF8Flag is general-purpose bit 11: the name/comment are UTF-8.
const UTF8Flag uint16 = 0x800

// EncryptedFlag is general-purpose bit 0.
const EncryptedFlag uint16 = 0x1

// DataDescriptorFlag is general-purpose bit 3.
const DataDescriptorFlag uint16 = 0x8

// StrongEncryptionFlag is general-purpose bit 6 (PKWARE SES/SRP); zipkit
// rejects archives that set it, since strong encryption is out of scope.
const StrongEncryptionFlag uint16 = 0x40

// AESMethod is the on-disk compression method placeholder used whenever
// an entry is WinZip AES encrypted; the true method lives in the AES
// extra field.
const AESMethod uint16 = 99

// CentralDirEntry is one fully decoded Central Directory Header.
type CentralDirEntry struct {
	VersionMadeBy     uint16
	VersionNeeded     uint16
	Flags             uint16
	Method            uint16
	ModTime           uint16
	ModDate           uint16
	CRC32             uint32
	CompressedSize    uint64
	UncompressedSize  uint64
	NameRaw           []byte
	Name              string
	Extras            []extrafield.Field // decoded, ZIP64 (0x0001) excluded
	Comment           string
	DiskNumberStart   uint32
	InternalAttrs     uint16
	ExternalAttrs     uint32
	LocalHeaderOffset uint64
}

// ParseCentralDirectory reads count consecutive Central Directory Headers
// starting at cdOffset.
func ParseCentralDirectory(r io.ReaderAt, cdOffset int64, cdSize int64, count uint64) ([]CentralDirEntry, error) {
	sr := io.NewSectionReader(r, cdOffset, cdSize)
	br := bufio.NewReader(sr)

	entries := make([]CentralDirEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		e, err := parseOneCentralDirEntry(br)
		if err != nil {
			return nil, fmt.Errorf("container: central directory entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseOneCentralDirEntry(br *bufio.Reader) (CentralDirEntry, error) {
	var fixed [centralHeaderFixedLen]byte
	if _, err := io.ReadFull(br, fixed[:]); err != nil {
		return CentralDirEntry{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if le32(fixed[:4]) != SigCentralDir {
		return CentralDirEntry{}, fmt.Errorf("%w: bad central directory signature", ErrFormat)
	}

	e := CentralDirEntry{
		VersionMadeBy:    le16(fixed[4:]),
		VersionNeeded:    le16(fixed[6:]),
		Flags:            le16(fixed[8:]),
		Method:           le16(fixed[10:]),
		ModTime:          le16(fixed[12:]),
		ModDate:          le16(fixed[14:]),
		CRC32:            le32(fixed[16:]),
		CompressedSize:   uint64(le32(fixed[20:])),
		UncompressedSize: uint64(le32(fixed[24:])),
		InternalAttrs:    le16(fixed[36:]),
		ExternalAttrs:    le32(fixed[38:]),
	}
	nameLen := int(le16(fixed[28:]))
	extraLen := int(le16(fixed[30:]))
	commentLen := int(le16(fixed[32:]))
	e.DiskNumberStart = uint32(le16(fixed[34:]))
	localOffset32 := le32(fixed[42:])
	e.LocalHeaderOffset = uint64(localOffset32)

	nameRaw := make([]byte, nameLen)
	if _, err := io.ReadFull(br, nameRaw); err != nil {
		return CentralDirEntry{}, fmt.Errorf("%w: reading name: %v", ErrFormat, err)
	}
	e.NameRaw = nameRaw
	if e.Flags&UTF8Flag != 0 {
		e.Name = string(nameRaw)
	} else {
		e.Name = cp437.Decode(nameRaw)
	}

	extraRaw := make([]byte, extraLen)
	if _, err := io.ReadFull(br, extraRaw); err != nil {
		return CentralDirEntry{}, fmt.Errorf("%w: reading extra: %v", ErrFormat, err)
	}

	commentRaw := make([]byte, commentLen)
	if _, err := io.ReadFull(br, commentRaw); err != nil {
		return CentralDirEntry{}, fmt.Errorf("%w: reading comment: %v", ErrFormat, err)
	}
	e.Comment = string(commentRaw)

	presence := extrafield.Zip64Presence{
		UncompressedSize: e.UncompressedSize == uint32max,
		CompressedSize:   e.CompressedSize == uint32max,
		Offset:           localOffset32 == uint32max,
		Disk:             e.DiskNumberStart == uint16max,
	}
	needZip64 := presence.UncompressedSize || presence.CompressedSize || presence.Offset || presence.Disk

	for _, raw := range extrafield.ParseBlocks(extraRaw) {
		if raw.ID == extrafield.IDZip64 {
			z, err := extrafield.DecodeZip64(raw.Payload, presence)
			if err != nil {
				return CentralDirEntry{}, fmt.Errorf("%w: %w", ErrFormat, err)
			}
			if presence.UncompressedSize {
				e.UncompressedSize = z.UncompressedSize
			}
			if presence.CompressedSize {
				e.CompressedSize = z.CompressedSize
			}
			if presence.Offset {
				e.LocalHeaderOffset = z.Offset
			}
			if presence.Disk {
				e.DiskNumberStart = z.Disk
			}
			needZip64 = false
			continue
		}
		// A typed decode failure (e.g. the ASi Unix extra's embedded CRC)
		// keeps its own sentinel in the chain alongside ErrFormat, so
		// callers can tell a checksum mismatch from structural corruption.
		field, err := extrafield.Decode(raw.ID, raw.Payload, extrafield.Central)
		if err != nil {
			return CentralDirEntry{}, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		e.Extras = append(e.Extras, field)
	}
	if needZip64 {
		return CentralDirEntry{}, fmt.Errorf("%w: 32-bit sentinel present without matching ZIP64 extra", ErrFormat)
	}

	if e.Method == AESMethod {
		if !hasAESExtra(e.Extras) {
			return CentralDirEntry{}, fmt.Errorf("%w: method 99 without AES extra field", ErrFormat)
		}
	}
	if e.Flags&StrongEncryptionFlag != 0 {
		return CentralDirEntry{}, fmt.Errorf("%w: strong encryption is not supported", ErrFormat)
	}

	return e, nil
}

func hasAESExtra(extras []extrafield.Field) bool {
	for _, f := range extras {
		if _, ok := f.(extrafield.AES); ok {
			return true
		}
	}
	return false
}

// AESExtraOf returns the decoded AES extra field, if present.
func AESExtraOf(extras []extrafield.Field) (extrafield.AES, bool) {
	for _, f := range extras {
		if a, ok := f.(extrafield.AES); ok {
			return a, true
		}
	}
	return extrafield.AES{}, false
}
