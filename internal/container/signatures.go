// Package container implements the binary ZIP container format: locating
// the End Of Central Directory record (with its ZIP64 locator/record),
// walking the Central Directory, decoding and emitting Local File Headers,
// data descriptors, and the ZIP64 promotion machinery that ties them all
// together. It knows nothing about compression or encryption; it only
// reads and writes the envelope around entry payloads.
package container

const (
	SigLocalFile      uint32 = 0x04034b50
	SigCentralDir     uint32 = 0x02014b50
	SigEOCD           uint32 = 0x06054b50
	SigZip64Locator   uint32 = 0x07064b50
	SigZip64EOCD      uint32 = 0x06064b50
	SigDataDescriptor uint32 = 0x08074b50

	localHeaderFixedLen   = 30
	centralHeaderFixedLen = 46
	eocdFixedLen          = 22
	zip64LocatorLen       = 20
	zip64EOCDFixedLen     = 56
	dataDescriptorLen32   = 16 // signature + crc32 + 2x uint32
	dataDescriptorLen64   = 24 // signature + crc32 + 2x uint64

	// Version numbers (APPNOTE "version needed to extract" / "version made
	// by" low byte).
	Version20 = 20 // 2.0: default
	Version45 = 45 // 4.5: ZIP64

	uint16max = 1<<16 - 1
	uint32max = 1<<32 - 1

	// MaxEOCDCommentLen is the largest archive comment LocateEOCD will
	// search for (the field is a 16-bit length).
	MaxEOCDCommentLen = uint16max
)

// Platform identifiers for the high byte of "version made by".
const (
	PlatformFAT  = 0
	PlatformUnix = 3
	PlatformNTFS = 11
	PlatformVFAT = 14
	PlatformOSX  = 19
)
