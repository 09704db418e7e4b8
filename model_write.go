package zipkit

import (
	"crypto/rand"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/go-zipkit/zipkit/internal/container"
	"github.com/go-zipkit/zipkit/internal/extrafield"
	"github.com/go-zipkit/zipkit/internal/filter"
	"github.com/go-zipkit/zipkit/internal/pkware"
	"github.com/go-zipkit/zipkit/internal/winzipaes"
)

// writtenEntry records what actually ended up on disk for one entry, so
// the Central Directory pass can be written after every Local File Header
// and payload, as required by the single-pass serialization contract.
type writtenEntry struct {
	name             []byte
	comment          string
	flags            uint16
	method           uint16 // on-disk method (99 for AES)
	modTime, modDate uint16
	crc32            uint32
	compressedSize   uint64
	uncompressedSize uint64
	offset           uint64
	externalAttrs    uint32
	platform         byte
	versionNeeded    uint16
	extra            []byte // non-zip64 extras, central-directory form
}

// Write streams the Model to target: every entry's Local File Header and
// payload in model order, then the Central Directory, optional ZIP64
// records, and the EOCD. If target implements Committer, a failed write
// aborts it and a successful one commits it.
func (m *Model) Write(target WriteTarget) error {
	if err := m.writeTo(target); err != nil {
		if c, ok := target.(Committer); ok {
			c.Abort()
		}
		return err
	}
	if c, ok := target.(Committer); ok {
		return c.Commit()
	}
	return nil
}

func (m *Model) writeTo(target WriteTarget) error {
	if len(m.Comment) > uint16Max {
		return wrapErr("Write", InvalidArgument, "", errCommentTooLong)
	}
	cw := &countingWriter{w: target}

	var written []writtenEntry
	for _, e := range m.entries {
		if len(e.Comment) > uint16Max {
			return wrapErr("Write", InvalidArgument, e.Name, errCommentTooLong)
		}
		we, err := m.writeEntry(cw, e)
		if err != nil {
			return err
		}
		written = append(written, we)
	}

	cdOffset := uint64(cw.count)
	for _, we := range written {
		if err := writeCentralDirEntry(cw, we); err != nil {
			return wrapErr("Write", Unknown, string(we.name), err)
		}
	}
	cdSize := uint64(cw.count) - cdOffset

	if err := container.WriteEOCD(cw, cdOffset, cdSize, uint64(len(written)), []byte(m.Comment)); err != nil {
		return wrapErr("Write", IO, "", err)
	}
	return nil
}

type countingWriter struct {
	w     io.Writer
	count int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.count += int64(n)
	return n, err
}

func (m *Model) writeEntry(w *countingWriter, e *Entry) (writtenEntry, error) {
	offset := uint64(w.count)

	if e.passThroughEligible() {
		return m.writePassThrough(w, e, offset)
	}
	return m.writeEncoded(w, e, offset)
}

// writePassThrough re-emits an unmodified archive entry's ciphertext bytes
// exactly as they were read, without decoding them, behind a Local File
// Header rebuilt from the parsed one.
func (m *Model) writePassThrough(w *countingWriter, e *Entry, offset uint64) (writtenEntry, error) {
	src := e.source.(*archiveSource)
	cd := container.CentralDirEntry{
		Name:             e.Name,
		CRC32:            e.CRC32,
		CompressedSize:   e.CompressedSize,
		UncompressedSize: e.UncompressedSize,
		Flags:            src.flags,
	}
	payloadOffset, err := resolvePayloadOffset(src, cd)
	if err != nil {
		return writtenEntry{}, wrapErr("Write", structuralKind(err), e.Name, err)
	}

	lfh, err := container.ReadLocalHeader(src.reader, src.lfhOffset)
	if err != nil {
		return writtenEntry{}, wrapErr("Write", structuralKind(err), e.Name, err)
	}

	// The payload bytes are copied verbatim, but the header is rebuilt: a
	// rename may have changed the name (and whether it needs the UTF-8
	// flag), and the entry may land at a different offset than it came
	// from, which matters for alignment.
	nameRaw := []byte(e.Name)
	flags := lfh.Flags
	if valid, require := detectUTF8(e.Name); require && valid {
		flags |= container.UTF8Flag
	}

	realign := m.Align > 1 && src.onDiskMethod == Store && flags&container.EncryptedFlag == 0
	extra := lfhExtraBytes(lfh, realign)
	if realign {
		pad := container.PaddingFor(int64(offset), m.Align, container.LocalHeaderLen(len(nameRaw)), len(extra))
		extra = append(extra, container.EncodePadding(pad)...)
	}

	header := container.BuildLocalHeader(lfh.VersionNeeded, flags, src.onDiskMethod, src.modTime, src.modDate,
		e.CRC32, e.CompressedSize, e.UncompressedSize, nameRaw, extra, flags&container.DataDescriptorFlag != 0)
	if _, err := w.Write(header); err != nil {
		return writtenEntry{}, wrapErr("Write", IO, e.Name, err)
	}

	if _, err := io.Copy(w, io.NewSectionReader(src.reader, payloadOffset, int64(e.CompressedSize))); err != nil {
		return writtenEntry{}, wrapErr("Write", IO, e.Name, err)
	}

	if flags&container.DataDescriptorFlag != 0 {
		dd := container.BuildDataDescriptor(e.CRC32, e.CompressedSize, e.UncompressedSize)
		if _, err := w.Write(dd); err != nil {
			return writtenEntry{}, wrapErr("Write", IO, e.Name, err)
		}
	}

	return writtenEntry{
		name:             nameRaw,
		comment:          e.Comment,
		flags:            flags,
		method:           src.onDiskMethod,
		modTime:          src.modTime,
		modDate:          src.modDate,
		crc32:            e.CRC32,
		compressedSize:   e.CompressedSize,
		uncompressedSize: e.UncompressedSize,
		offset:           offset,
		externalAttrs:    e.ExternalAttrs,
		platform:         e.platform,
		versionNeeded:    lfh.VersionNeeded,
		extra:            encodeExtras(e.Extras, extrafield.Central),
	}, nil
}

// lfhExtraBytes re-encodes a parsed Local File Header's extra fields.
// When dropPadding is set, existing 0xD935 padding placeholders are
// omitted so a fresh one sized for the entry's new offset can be appended.
func lfhExtraBytes(lfh container.LocalFileHeader, dropPadding bool) []byte {
	var buf []byte
	for _, f := range lfh.Extras {
		if dropPadding {
			if _, isPad := f.(extrafield.Padding); isPad {
				continue
			}
		}
		payload, err := extrafield.Encode(f, extrafield.Local)
		if err != nil {
			continue
		}
		buf = append(buf, extrafield.EncodeBlock(f.HeaderID(), payload)...)
	}
	return buf
}

func encodeExtras(extras []extrafield.Field, ctx extrafield.Context) []byte {
	var buf []byte
	for _, f := range extras {
		payload, err := extrafield.Encode(f, ctx)
		if err != nil {
			continue
		}
		buf = append(buf, extrafield.EncodeBlock(f.HeaderID(), payload)...)
	}
	return buf
}

// writeEncoded builds a fresh filter chain from the entry's current data
// source and compression/encryption settings, streaming plaintext through
// it and recording whatever sizes result.
func (m *Model) writeEncoded(w *countingWriter, e *Entry, offset uint64) (writtenEntry, error) {
	if e.Encryption != NoEncryption && len(e.Password) == 0 {
		return writtenEntry{}, wrapErr("Write", InvalidArgument, e.Name, fmt.Errorf("encryption requested without a password"))
	}

	// A mutated archive-sourced entry (recompressed, re-encrypted, renamed
	// into a different flag regime) must be decoded back to plaintext
	// before the new chain can run over it.
	source := e.source
	if as, ok := source.(*archiveSource); ok {
		plaintext, err := m.decodeArchiveEntry("Write", e, as)
		if err != nil {
			return writtenEntry{}, err
		}
		source = BytesSource(plaintext)
		// The entry no longer matches its old on-disk bytes, so it must not
		// fall back to the stale archive location on a later Write.
		e.source = source
	}

	_, seekable, err := sourceLength(source)
	if err != nil {
		return writtenEntry{}, wrapErr("Write", IO, e.Name, err)
	}
	// Compressed size can only be known before streaming when the source
	// length is known up front AND compression cannot change it (STORE).
	// Deflate/Bzip2 output size depends on the content, so those always
	// need a trailing data descriptor.
	useDescriptor := !seekable || e.Compression != Store
	if e.IsDir() {
		useDescriptor = false
	}
	if e.Encryption == PKWAREEncryption && !e.IsDir() {
		// The PKWARE check byte is defined as the high byte of either the
		// final CRC-32 or the DOS mod-time field, chosen by whether a data
		// descriptor is in use. The CRC is only known after streaming, so
		// zipkit always takes the data-descriptor branch for freshly
		// encrypted PKWARE entries and uses the mod-time byte instead.
		useDescriptor = true
	}

	onDiskMethod := e.Compression
	var aesExtra *extrafield.AES
	var encStage filter.Filter
	switch e.Encryption {
	case PKWAREEncryption:
		checkByte := pkwareCheckByte(e)
		enc, err := pkware.NewEncryptor(e.Password, checkByte, rand.Reader)
		if err != nil {
			return writtenEntry{}, wrapErr("Write", IO, e.Name, err)
		}
		encStage = enc
	case AES128, AES192, AES256:
		strength := winzipaes.Strength(aesStrengthOf(e.Encryption))
		enc, err := winzipaes.NewEncryptor(e.Password, strength, rand.Reader)
		if err != nil {
			return writtenEntry{}, wrapErr("Write", IO, e.Name, err)
		}
		encStage = enc
		vendorVersion := e.AESVendorVersion
		switch vendorVersion {
		case 0:
			vendorVersion = 2 // AE-2 unless the caller asked for AE-1
		case 1, 2:
		default:
			return writtenEntry{}, wrapErr("Write", InvalidArgument, e.Name, fmt.Errorf("AES vendor version %d", vendorVersion))
		}
		aesExtra = &extrafield.AES{VendorVersion: vendorVersion, Strength: byte(strength), Method: e.Compression}
		onDiskMethod = aesOnDiskMethod
	}

	var stages []filter.Filter
	if !e.IsDir() {
		switch e.Compression {
		case Store:
			stages = append(stages, filter.NewStoreEncoder())
		case Deflate:
			enc, err := filter.NewDeflateEncoder(e.CompressionLevel)
			if err != nil {
				return writtenEntry{}, wrapErr("Write", InvalidArgument, e.Name, err)
			}
			stages = append(stages, enc)
		case Bzip2:
			level := e.CompressionLevel
			if level == 0 {
				level = 9
			}
			enc, err := filter.NewBzip2Encoder(level)
			if err != nil {
				return writtenEntry{}, wrapErr("Write", InvalidArgument, e.Name, err)
			}
			stages = append(stages, enc)
		default:
			return writtenEntry{}, wrapErr("Write", Unsupported, e.Name, fmt.Errorf("compression method %d", e.Compression))
		}
		if encStage != nil {
			stages = append(stages, encStage)
		}
	}
	chain := filter.NewChain(stages...)

	flags := uint16(0)
	if useDescriptor {
		flags |= container.DataDescriptorFlag
	}
	if e.Encryption != NoEncryption {
		flags |= container.EncryptedFlag
	}
	if valid, require := detectUTF8(e.Name); require && valid {
		flags |= container.UTF8Flag
	}

	modDate, modTime := dosTime(e.Modified)
	mode := e.Mode
	if e.IsDir() {
		mode |= os.ModeDir
	}
	attrs, platform := externalAttrsForMode(mode)

	// Carry the entry's extras forward, minus the ones this write pass
	// regenerates: a parsed entry's stale AES descriptor, timestamp and
	// alignment padding would otherwise be emitted twice, contradicting
	// the fresh values.
	extras := make([]extrafield.Field, 0, len(e.Extras)+2)
	for _, f := range e.Extras {
		switch f.(type) {
		case extrafield.AES, extrafield.ExtTimestamp, extrafield.Padding:
			continue
		}
		extras = append(extras, f)
	}
	extras = append(extras, extrafield.ExtTimestamp{Flags: 1, ModTime: uint32(e.Modified.Unix()), HasMod: true})
	if aesExtra != nil {
		extras = append(extras, *aesExtra)
	}
	extra := encodeExtras(extras, extrafield.Local)
	centralExtra := encodeExtras(extras, extrafield.Central)

	if m.Align > 1 && !e.IsDir() && e.Encryption == NoEncryption && e.Compression == Store {
		pad := container.PaddingFor(int64(offset), m.Align, container.LocalHeaderLen(len(e.Name)), len(extra))
		extra = append(extra, container.EncodePadding(pad)...)
	}

	versionNeeded := container.Version20
	if aesExtra != nil || e.Compression == Bzip2 {
		versionNeeded = container.Version45 // matches the ZIP64-capable reader baseline the corpus targets
	}

	// When no data descriptor will follow, the Local File Header must
	// already carry the true CRC-32 and sizes. That is only possible by
	// running the content through the filter chain before the header is
	// written, so this branch buffers the whole (Store-compressed)
	// payload up front instead of streaming it straight to w.
	var plainBuf, cipherBuf []byte
	var bufferedCRC uint32
	if !e.IsDir() && !useDescriptor {
		r, closer, err := openSource(source)
		if err != nil {
			return writtenEntry{}, wrapErr("Write", IO, e.Name, err)
		}
		if closer != nil {
			defer closer.Close()
		}
		plainBuf, err = io.ReadAll(r)
		if err != nil {
			return writtenEntry{}, wrapErr("Write", IO, e.Name, err)
		}
		bufferedCRC = crc32.ChecksumIEEE(plainBuf)
		if aesExtra != nil && aesExtra.VendorVersion == 2 {
			// AE-2 stores no CRC; the HMAC tag alone authenticates.
			bufferedCRC = 0
		}
		out, err := chain.Push(plainBuf)
		if err != nil {
			return writtenEntry{}, wrapErr("Write", Unknown, e.Name, err)
		}
		cipherBuf = append(cipherBuf, out...)
		tail, err := chain.Finish()
		if err != nil {
			return writtenEntry{}, wrapErr("Write", Unknown, e.Name, err)
		}
		cipherBuf = append(cipherBuf, tail...)
	}

	provisionalCRC := uint32(0)
	provisionalCompressed, provisionalUncompressed := uint64(0), uint64(0)
	if !useDescriptor {
		provisionalCRC = bufferedCRC
		provisionalUncompressed = uint64(len(plainBuf))
		provisionalCompressed = uint64(len(cipherBuf))
	}

	header := container.BuildLocalHeader(uint16(versionNeeded), flags, onDiskMethod, modTime, modDate,
		provisionalCRC, provisionalCompressed, provisionalUncompressed, []byte(e.Name), extra, useDescriptor)
	if _, err := w.Write(header); err != nil {
		return writtenEntry{}, wrapErr("Write", IO, e.Name, err)
	}

	var finalCRC uint32
	var plainCount, cipherCount uint64
	if !useDescriptor {
		if len(cipherBuf) > 0 {
			if _, err := w.Write(cipherBuf); err != nil {
				return writtenEntry{}, wrapErr("Write", IO, e.Name, err)
			}
		}
		finalCRC = bufferedCRC
		plainCount = uint64(len(plainBuf))
		cipherCount = uint64(len(cipherBuf))
	} else {
		crc := crc32.NewIEEE()
		if !e.IsDir() {
			r, closer, err := openSource(source)
			if err != nil {
				return writtenEntry{}, wrapErr("Write", IO, e.Name, err)
			}
			if closer != nil {
				defer closer.Close()
			}
			buf := make([]byte, 32*1024)
			for {
				n, rerr := r.Read(buf)
				if n > 0 {
					plainCount += uint64(n)
					crc.Write(buf[:n])
					out, perr := chain.Push(buf[:n])
					if perr != nil {
						return writtenEntry{}, wrapErr("Write", Unknown, e.Name, perr)
					}
					cipherCount += uint64(len(out))
					if _, werr := w.Write(out); werr != nil {
						return writtenEntry{}, wrapErr("Write", IO, e.Name, werr)
					}
				}
				if rerr == io.EOF {
					break
				}
				if rerr != nil {
					return writtenEntry{}, wrapErr("Write", IO, e.Name, rerr)
				}
			}
			tail, err := chain.Finish()
			if err != nil {
				return writtenEntry{}, wrapErr("Write", Unknown, e.Name, err)
			}
			cipherCount += uint64(len(tail))
			if _, err := w.Write(tail); err != nil {
				return writtenEntry{}, wrapErr("Write", IO, e.Name, err)
			}
		}
		finalCRC = crc.Sum32()
		if aesExtra != nil && aesExtra.VendorVersion == 2 {
			finalCRC = 0
		}
		dd := container.BuildDataDescriptor(finalCRC, cipherCount, plainCount)
		if _, err := w.Write(dd); err != nil {
			return writtenEntry{}, wrapErr("Write", IO, e.Name, err)
		}
	}

	e.CRC32 = finalCRC
	e.CompressedSize = cipherCount
	e.UncompressedSize = plainCount
	e.dirty = false

	return writtenEntry{
		name:             []byte(e.Name),
		comment:          e.Comment,
		flags:            flags,
		method:           onDiskMethod,
		modTime:          modTime,
		modDate:          modDate,
		crc32:            finalCRC,
		compressedSize:   cipherCount,
		uncompressedSize: plainCount,
		offset:           offset,
		externalAttrs:    attrs,
		platform:         platform,
		versionNeeded:    uint16(versionNeeded),
		extra:            centralExtra,
	}, nil
}

func writeCentralDirEntry(w io.Writer, we writtenEntry) error {
	out := container.CentralDirEntryOut{
		VersionMadeBy:    uint16(we.platform)<<8 | uint16(container.Version20),
		VersionNeeded:    we.versionNeeded,
		Flags:            we.flags,
		Method:           we.method,
		ModTime:          we.modTime,
		ModDate:          we.modDate,
		CRC32:            we.crc32,
		CompressedSize:   we.compressedSize,
		UncompressedSize: we.uncompressedSize,
		NameRaw:          we.name,
		Extra:            we.extra,
		Comment:          we.comment,
		ExternalAttrs:    we.externalAttrs,
		Offset:           we.offset,
	}
	return container.BuildCentralDirEntry(w, out)
}

func sourceLength(src DataSource) (length int64, seekable bool, err error) {
	switch s := src.(type) {
	case BytesSource:
		return int64(len(s)), true, nil
	case PathSource:
		info, err := os.Stat(string(s))
		if err != nil {
			return 0, false, err
		}
		return info.Size(), true, nil
	case StreamSource:
		return -1, false, nil
	case *archiveSource:
		return int64(s.uncompressedSize), true, nil
	default:
		return -1, false, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openSource(src DataSource) (io.Reader, io.Closer, error) {
	switch s := src.(type) {
	case BytesSource:
		return &byteReader{b: s}, nopCloser{}, nil
	case PathSource:
		f, err := os.Open(string(s))
		if err != nil {
			return nil, nil, err
		}
		return f, f, nil
	case StreamSource:
		return s.R, nopCloser{}, nil
	case *archiveSource:
		return nil, nil, fmt.Errorf("archive-sourced entry must use pass-through or have its bytes materialized first")
	default:
		return nil, nopCloser{}, nil
	}
}

type byteReader struct {
	b   []byte
	pos int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}

// pkwareCheckByte returns the decryption-header check byte for a freshly
// encrypted PKWARE entry: the high byte of the DOS mod-time field, the
// variant used whenever a data descriptor accompanies the entry (which
// zipkit always arranges for new PKWARE-encrypted entries; see
// writeEncoded).
func pkwareCheckByte(e *Entry) byte {
	_, modTime := dosTime(e.Modified)
	return byte(modTime >> 8)
}

func aesStrengthOf(m EncryptionMethod) byte {
	switch m {
	case AES128:
		return 1
	case AES192:
		return 2
	case AES256:
		return 3
	default:
		return 0
	}
}
