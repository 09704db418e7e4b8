package container

import (
	"fmt"
	"io"
)

// EOCD is the resolved End Of Central Directory information, merging the
// 32-bit record with the ZIP64 record/locator when present.
type EOCD struct {
	Disk            uint32
	CDDisk          uint32
	EntriesThisDisk uint64
	EntriesTotal    uint64
	CDSize          uint64
	CDOffset        uint64
	Comment         []byte
	IsZip64         bool

	// Offset is the absolute file offset of the (32-bit) EOCD record
	// itself, i.e. where the Central Directory logically ends.
	Offset int64
}

// LocateEOCD scans backwards from the end of an archive of the given size
// for the EOCD signature, preferring the match closest to the end of the
// file whose declared comment length is consistent with the remaining
// bytes (the first such match scanning from the end). If a ZIP64 locator
// immediately precedes the EOCD, it is followed to the ZIP64 EOCD record
// and its 64-bit fields take precedence.
func LocateEOCD(r io.ReaderAt, size int64) (EOCD, error) {
	if size < eocdFixedLen {
		return EOCD{}, fmt.Errorf("%w: file too small for EOCD", ErrFormat)
	}

	maxCmt := int64(MaxEOCDCommentLen)
	if maxCmt > size-eocdFixedLen {
		maxCmt = size - eocdFixedLen
	}
	window := eocdFixedLen + int(maxCmt)
	buf := make([]byte, window)
	start := size - int64(window)
	n, err := r.ReadAt(buf, start)
	if err != nil && err != io.EOF {
		return EOCD{}, fmt.Errorf("container: reading EOCD search window: %w", err)
	}
	buf = buf[:n]

	for cmtLen := 0; cmtLen <= int(maxCmt); cmtLen++ {
		pos := len(buf) - eocdFixedLen - cmtLen
		if pos < 0 {
			break
		}
		b := buf[pos:]
		if le32(b) != SigEOCD {
			continue
		}
		declared := int(le16(b[20:]))
		if declared != cmtLen {
			continue
		}

		eocdOffset := start + int64(pos)
		rec := EOCD{
			Disk:            uint32(le16(b[4:])),
			CDDisk:          uint32(le16(b[6:])),
			EntriesThisDisk: uint64(le16(b[8:])),
			EntriesTotal:    uint64(le16(b[10:])),
			CDSize:          uint64(le32(b[12:])),
			CDOffset:        uint64(le32(b[16:])),
			Comment:         append([]byte(nil), b[22:22+cmtLen]...),
			Offset:          eocdOffset,
		}
		return resolveZip64(r, rec, eocdOffset)
	}
	return EOCD{}, fmt.Errorf("%w: EOCD not found", ErrFormat)
}

func resolveZip64(r io.ReaderAt, rec EOCD, eocdOffset int64) (EOCD, error) {
	sentinel := rec.EntriesTotal == uint16max || rec.CDSize == uint32max || rec.CDOffset == uint32max
	locatorOffset := eocdOffset - zip64LocatorLen
	if locatorOffset < 0 {
		if sentinel {
			return EOCD{}, fmt.Errorf("%w: EOCD sentinel present without ZIP64 locator", ErrFormat)
		}
		return rec, nil
	}

	var loc [zip64LocatorLen]byte
	n, err := r.ReadAt(loc[:], locatorOffset)
	if n < len(loc) || le32(loc[:4]) != SigZip64Locator {
		if sentinel {
			return EOCD{}, fmt.Errorf("%w: EOCD sentinel present without ZIP64 locator", ErrFormat)
		}
		return rec, nil
	}
	if err != nil && err != io.EOF {
		return EOCD{}, fmt.Errorf("container: reading ZIP64 locator: %w", err)
	}

	zip64Offset := int64(le64(loc[8:]))
	var rec64 [zip64EOCDFixedLen]byte
	n, err = r.ReadAt(rec64[:], zip64Offset)
	if n < len(rec64) {
		return EOCD{}, fmt.Errorf("%w: truncated ZIP64 EOCD record: %w", ErrFormat, err)
	}
	if le32(rec64[:4]) != SigZip64EOCD {
		return EOCD{}, fmt.Errorf("%w: bad ZIP64 EOCD signature", ErrFormat)
	}

	rec.IsZip64 = true
	rec.Disk = le32(rec64[16:])
	rec.CDDisk = le32(rec64[20:])
	rec.EntriesThisDisk = le64(rec64[24:])
	rec.EntriesTotal = le64(rec64[32:])
	rec.CDSize = le64(rec64[40:])
	rec.CDOffset = le64(rec64[48:])
	return rec, nil
}
