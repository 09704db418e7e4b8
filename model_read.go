package zipkit

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"time"

	"github.com/go-zipkit/zipkit/internal/container"
	"github.com/go-zipkit/zipkit/internal/extrafield"
	"github.com/go-zipkit/zipkit/internal/filter"
	"github.com/go-zipkit/zipkit/internal/pkware"
	"github.com/go-zipkit/zipkit/internal/winzipaes"
)

// Parse reads the archive structure from r: the EOCD (following a ZIP64
// locator/record when present) and the full Central Directory. Entry
// content is not read until ReadEntry is called; the returned Model keeps
// r open for that purpose.
func Parse(r io.ReaderAt, size int64) (*Model, error) {
	eocd, err := container.LocateEOCD(r, size)
	if err != nil {
		return nil, wrapErr("Parse", InvalidFormat, "", err)
	}
	cdEntries, err := container.ParseCentralDirectory(r, int64(eocd.CDOffset), int64(eocd.CDSize), eocd.EntriesTotal)
	if err != nil {
		return nil, wrapErr("Parse", structuralKind(err), "", err)
	}

	m := &Model{
		index:      make(map[string]int),
		source:     r,
		sourceSize: size,
		Comment:    string(eocd.Comment),
	}

	for _, cd := range cdEntries {
		e, err := entryFromCentralDir(r, cd)
		if err != nil {
			return nil, wrapErr("Parse", structuralKind(err), cd.Name, err)
		}
		m.index[e.Name] = len(m.entries)
		m.entries = append(m.entries, e)
	}
	return m, nil
}

func entryFromCentralDir(r io.ReaderAt, cd container.CentralDirEntry) (*Entry, error) {
	trueMethod := cd.Method
	var aesStrength byte
	var aesVendorVersion uint16
	if cd.Method == aesOnDiskMethod {
		aes, ok := container.AESExtraOf(cd.Extras)
		if !ok {
			return nil, fmt.Errorf("method 99 without AES extra")
		}
		trueMethod = aes.Method
		aesStrength = aes.Strength
		aesVendorVersion = aes.VendorVersion
	}

	enc := NoEncryption
	if cd.Flags&container.EncryptedFlag != 0 {
		switch {
		case cd.Method != aesOnDiskMethod:
			enc = PKWAREEncryption
		case aesStrength == 1:
			enc = AES128
		case aesStrength == 2:
			enc = AES192
		case aesStrength == 3:
			enc = AES256
		}
	}

	platform := byte(cd.VersionMadeBy >> 8)
	modified := dosTimeToTime(cd.ModDate, cd.ModTime, time.UTC)
	for _, f := range cd.Extras {
		if ts, ok := f.(extrafield.ExtTimestamp); ok && ts.HasMod {
			modified = time.Unix(int64(ts.ModTime), 0).UTC()
		}
	}

	e := &Entry{
		Name:             cd.Name,
		Comment:          cd.Comment,
		Mode:             modeFromExternalAttrs(platform, cd.ExternalAttrs),
		Modified:         modified,
		Encryption:       enc,
		Compression:      trueMethod,
		CRC32:            cd.CRC32,
		CompressedSize:   cd.CompressedSize,
		UncompressedSize: cd.UncompressedSize,
		ExternalAttrs:    cd.ExternalAttrs,
		AESVendorVersion: aesVendorVersion,
		platform:         platform,
		Extras:           cd.Extras,
		source: &archiveSource{
			reader:           r,
			lfhOffset:        int64(cd.LocalHeaderOffset),
			compressedSize:   cd.CompressedSize,
			uncompressedSize: cd.UncompressedSize,
			onDiskMethod:     cd.Method,
			flags:            cd.Flags,
			modTime:          cd.ModTime,
			modDate:          cd.ModDate,
			aesStrength:      aesStrength,
			aesVendorVersion: aesVendorVersion,
			trueMethod:       trueMethod,
			encryption:       enc,
		},
	}
	return e, nil
}

// resolvePayloadOffset parses the entry's Local File Header the first
// time it is needed and cross-checks it against the Central Directory,
// per the lazy-verification contract of the container codec.
func resolvePayloadOffset(src *archiveSource, cd container.CentralDirEntry) (int64, error) {
	if src.resolved {
		return src.payloadOffset, nil
	}
	lfh, err := container.ReadLocalHeader(src.reader, src.lfhOffset)
	if err != nil {
		return 0, err
	}
	if err := lfh.VerifyAgainstCentral(cd); err != nil {
		return 0, err
	}
	src.payloadOffset = src.lfhOffset + lfh.HeaderLen
	src.resolved = true
	return src.payloadOffset, nil
}

// ReadEntry returns the entry's decoded plaintext, decrypting and
// decompressing it if necessary. For an archive-sourced entry the CRC-32
// of the decoded plaintext is checked against the stored value (except for
// AE-2 entries); the decoded length is not compared with the stored
// uncompressed size.
func (m *Model) ReadEntry(name string) ([]byte, error) {
	e := m.Entry(name)
	if e == nil {
		return nil, wrapErr("ReadEntry", EntryNotFound, name, nil)
	}
	if e.IsDir() || e.source == nil {
		return nil, nil
	}

	switch src := e.source.(type) {
	case BytesSource:
		return append([]byte(nil), src...), nil
	case PathSource:
		b, err := os.ReadFile(string(src))
		if err != nil {
			return nil, wrapErr("ReadEntry", IO, name, err)
		}
		return b, nil
	case StreamSource:
		b, err := io.ReadAll(src.R)
		if err != nil {
			return nil, wrapErr("ReadEntry", IO, name, err)
		}
		return b, nil
	case *archiveSource:
		return m.decodeArchiveEntry("ReadEntry", e, src)
	default:
		return nil, nil
	}
}

// decodeArchiveEntry decrypts and decompresses an archive-sourced entry's
// original on-disk bytes. The decode parameters come from the archiveSource
// captured at parse time, not from the Entry's mutable fields, so the
// original bytes remain readable after SetCompression or a pending
// re-encryption changed the entry's target settings.
func (m *Model) decodeArchiveEntry(op string, e *Entry, src *archiveSource) ([]byte, error) {
	cd := container.CentralDirEntry{
		Name:             e.Name,
		CRC32:            e.CRC32,
		CompressedSize:   e.CompressedSize,
		UncompressedSize: e.UncompressedSize,
		Flags:            src.flags,
	}
	offset, err := resolvePayloadOffset(src, cd)
	if err != nil {
		return nil, wrapErr(op, structuralKind(err), e.Name, err)
	}

	ciphertext := make([]byte, src.compressedSize)
	if _, err := src.reader.ReadAt(ciphertext, offset); err != nil && err != io.EOF {
		return nil, wrapErr(op, IO, e.Name, err)
	}

	var stages []filter.Filter
	skipCRC := false

	switch src.encryption {
	case PKWAREEncryption:
		checkByte := byte(src.modTime >> 8)
		if src.flags&container.DataDescriptorFlag == 0 {
			checkByte = byte(e.CRC32 >> 24)
		}
		stages = append(stages, pkware.NewDecryptor(e.Password, checkByte))
	case AES128, AES192, AES256:
		strength := winzipaes.Strength(src.aesStrength)
		dec, err := winzipaes.NewDecryptor(e.Password, strength)
		if err != nil {
			return nil, wrapErr(op, InvalidArgument, e.Name, err)
		}
		stages = append(stages, dec)
		skipCRC = src.aesVendorVersion == 2 // AE-2
	}

	switch src.trueMethod {
	case Store:
		stages = append(stages, filter.NewStoreDecoder())
	case Deflate:
		dec, err := filter.NewDeflateDecoder()
		if err != nil {
			return nil, wrapErr(op, Unknown, e.Name, err)
		}
		stages = append(stages, dec)
	case Bzip2:
		dec, err := filter.NewBzip2Decoder()
		if err != nil {
			return nil, wrapErr(op, Unknown, e.Name, err)
		}
		stages = append(stages, dec)
	default:
		return nil, wrapErr(op, Unsupported, e.Name, fmt.Errorf("compression method %d", src.trueMethod))
	}

	chain := filter.NewChain(stages...)
	var out bytes.Buffer
	pushed, err := chain.Push(ciphertext)
	if err != nil {
		chain.Abort()
		return nil, translateFilterErr(op, e.Name, err)
	}
	out.Write(pushed)
	tail, err := chain.Finish()
	if err != nil {
		chain.Abort()
		return nil, translateFilterErr(op, e.Name, err)
	}
	out.Write(tail)

	plaintext := out.Bytes()
	if !skipCRC && crc32.ChecksumIEEE(plaintext) != e.CRC32 {
		return nil, wrapErr(op, ChecksumMismatch, e.Name, fmt.Errorf("decoded CRC32 does not match stored value"))
	}
	return plaintext, nil
}

func translateFilterErr(op, name string, err error) error {
	if err == pkware.ErrAuthentication || err == winzipaes.ErrAuthentication {
		return wrapErr(op, Authentication, name, err)
	}
	return wrapErr(op, Unknown, name, err)
}

// structuralKind classifies a container parsing failure: a typed
// extra-field checksum failure keeps its own kind per the extra-field
// contract, anything else is structural corruption.
func structuralKind(err error) Kind {
	if errors.Is(err, extrafield.ErrCrc32Mismatch) {
		return ChecksumMismatch
	}
	return InvalidFormat
}
