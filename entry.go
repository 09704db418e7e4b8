package zipkit

import (
	"io"
	"os"
	"time"

	"github.com/go-zipkit/zipkit/internal/extrafield"
)

// Compression methods, as stored in the on-disk "compression method"
// field. AES-wrapped entries record this same value in the AES extra
// field (0x9901) while the on-disk field itself reads 99.
const (
	Store   uint16 = 0
	Deflate uint16 = 8
	Bzip2   uint16 = 12
)

// aesOnDiskMethod is the compression-method placeholder every AES
// encrypted entry carries on disk; the real method lives in the AES extra
// field.
const aesOnDiskMethod uint16 = 99

// EncryptionMethod selects how an entry's compressed bytes are wrapped
// before being written to disk.
type EncryptionMethod int

const (
	NoEncryption EncryptionMethod = iota
	PKWAREEncryption
	AES128
	AES192
	AES256
)

// DataSource is the tagged variant describing where an entry's plaintext
// bytes come from. A nil DataSource means the entry is a directory (name
// ends in "/") with no content of its own.
type DataSource interface {
	isDataSource()
}

// BytesSource supplies plaintext already held in memory. Its length is
// known up front and it is re-readable, so an unencrypted or AES entry
// stored with Store needs no data descriptor; Deflate, Bzip2 and PKWARE
// entries built from it still get one.
type BytesSource []byte

func (BytesSource) isDataSource() {}

// StreamSource supplies plaintext from an io.Reader whose length is not
// known in advance, forcing data-descriptor use. The reader is consumed by
// the first Write; serializing the same Model again requires a re-readable
// source.
type StreamSource struct {
	R io.Reader
}

func (StreamSource) isDataSource() {}

// PathSource supplies plaintext read on demand from a filesystem path;
// its length comes from a stat call at write time.
type PathSource string

func (PathSource) isDataSource() {}

// archiveSource is the pass-through variant created internally when an
// entry is populated from a parsed archive: its bytes live at a known
// offset in a source ReaderAt the Model owns.
type archiveSource struct {
	reader           io.ReaderAt
	lfhOffset        int64
	compressedSize   uint64
	uncompressedSize uint64
	onDiskMethod     uint16
	flags            uint16
	modTime, modDate uint16
	aesStrength      byte
	aesVendorVersion uint16

	// trueMethod and encryption are the decode parameters as parsed, kept
	// separately from the Entry's mutable fields so the original bytes can
	// still be decoded after SetCompression/SetPassword changed the entry's
	// target settings.
	trueMethod uint16
	encryption EncryptionMethod

	// payloadOffset is resolved lazily, the first time the entry's
	// content is read, by parsing the Local File Header at lfhOffset.
	payloadOffset int64
	resolved      bool
}

func (*archiveSource) isDataSource() {}

// EntryOptions configures a new entry at Add time.
type EntryOptions struct {
	Compression      uint16 // Store, Deflate or Bzip2; zero value is Store
	CompressionLevel int
	Encryption       EncryptionMethod
	Password         []byte
	Comment          string
	Mode             os.FileMode
	Modified         time.Time
	// AESVendorVersion selects AE-1 (1) or AE-2 (2) for AES entries;
	// zero picks the default, AE-2.
	AESVendorVersion uint16
	// Replace allows Add to overwrite an existing entry of the same name
	// instead of failing with EntryAlreadyExists.
	Replace bool
}

// Entry is one file or directory within a Model.
type Entry struct {
	Name       string
	Comment    string
	Mode       os.FileMode
	Modified   time.Time
	Encryption EncryptionMethod
	Password   []byte

	Compression      uint16
	CompressionLevel int

	// AESVendorVersion selects AE-1 (1) or AE-2 (2) framing for AES
	// encrypted entries; zero means the default, AE-2.
	AESVendorVersion uint16

	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64

	ExternalAttrs uint32
	platform      byte

	// Extras holds every decoded extra field except ZIP64, in the order
	// they appeared on disk (for parsed entries) or were added.
	Extras []extrafield.Field

	source DataSource

	// dirty is set whenever a mutation changes a property that would
	// affect the on-disk bytes, forcing the write pipeline out of
	// pass-through mode even if the entry originated from an archive.
	dirty bool
}

// IsDir reports whether the entry represents a directory.
func (e *Entry) IsDir() bool {
	return len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/'
}

func (e *Entry) markDirty() { e.dirty = true }

// passThroughEligible reports whether the entry can still be streamed
// byte-for-byte from its original archive location.
func (e *Entry) passThroughEligible() bool {
	if e.dirty {
		return false
	}
	_, ok := e.source.(*archiveSource)
	return ok
}
