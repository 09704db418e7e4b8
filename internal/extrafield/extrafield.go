// Package extrafield decodes and encodes the polymorphic ZIP "extra field"
// records keyed by a 16-bit header ID. Known IDs are dispatched to typed
// Go values; unknown IDs are retained verbatim as Unknown so a round trip
// never loses bytes.
package extrafield

import "fmt"

// Context distinguishes a local file header's extra block from a central
// directory header's extra block, since the same header ID may carry
// different payloads in each.
type Context int

const (
	Local Context = iota
	Central
)

// Known header IDs.
const (
	IDZip64          uint16 = 0x0001
	IDASiUnix        uint16 = 0x756E
	IDAES            uint16 = 0x9901
	IDNTFS           uint16 = 0x000A
	IDExtTimestamp   uint16 = 0x5455
	IDInfoZIPUnix1   uint16 = 0x5855
	IDInfoZIPUnixN   uint16 = 0x7875
	IDUnicodePath    uint16 = 0x7075
	IDUnicodeComment uint16 = 0x6375
	IDJarMarker      uint16 = 0xCAFE
	IDPadding        uint16 = 0xD935
)

// Field is a decoded extra-field record, typed or Unknown.
type Field interface {
	HeaderID() uint16
}

// Unknown is a header ID the registry does not understand. Its payload is
// kept byte-for-byte so it round-trips unchanged.
type Unknown struct {
	ID      uint16
	Payload []byte
}

func (u Unknown) HeaderID() uint16 { return u.ID }

// Raw is one (headerId, payload) entry as it appears on disk, before
// typed decoding. Block carries the raw bytes for a single Context; the
// caller (internal/container) is responsible for pairing up the Local and
// Central raw payloads for the same ID, since they may legitimately
// differ.
type Raw struct {
	ID      uint16
	Payload []byte
}

// ParseBlocks splits a raw extra-field byte run into (id, payload) pairs.
// Malformed trailing bytes (fewer than 4 header bytes, or a declared size
// longer than what remains) are silently dropped, matching how most ZIP
// readers tolerate truncated extra blocks written by lax encoders.
func ParseBlocks(b []byte) []Raw {
	var out []Raw
	for len(b) >= 4 {
		id := le16(b)
		size := int(le16(b[2:]))
		b = b[4:]
		if size > len(b) {
			break
		}
		out = append(out, Raw{ID: id, Payload: b[:size:size]})
		b = b[size:]
	}
	return out
}

// EncodeBlock frames a single (id, payload) pair as it appears on disk.
func EncodeBlock(id uint16, payload []byte) []byte {
	buf := make([]byte, 4+len(payload))
	putLE16(buf, id)
	putLE16(buf[2:], uint16(len(payload)))
	copy(buf[4:], payload)
	return buf
}

// Decode dispatches a single raw (id, payload) to its typed representation
// for the given context. Zip64 is intentionally not handled here: its
// decoding depends on which 32-bit fields in the enclosing header were
// sentinel values, which only internal/container knows; see DecodeZip64.
func Decode(id uint16, payload []byte, ctx Context) (Field, error) {
	switch id {
	case IDASiUnix:
		return DecodeASiUnix(payload)
	case IDAES:
		return DecodeAES(payload)
	case IDNTFS:
		return DecodeNTFS(payload)
	case IDExtTimestamp:
		return DecodeExtTimestamp(payload, ctx)
	case IDInfoZIPUnix1:
		return DecodeInfoZIPUnix1(payload, ctx)
	case IDInfoZIPUnixN:
		return DecodeUnixN(payload)
	case IDUnicodePath:
		return DecodeUnicodeField(IDUnicodePath, payload)
	case IDUnicodeComment:
		return DecodeUnicodeField(IDUnicodeComment, payload)
	case IDJarMarker:
		return JarMarker{}, nil
	case IDPadding:
		return Padding{Size: len(payload)}, nil
	default:
		return Unknown{ID: id, Payload: append([]byte(nil), payload...)}, nil
	}
}

// Encode renders a typed Field back to its on-disk payload for ctx.
func Encode(f Field, ctx Context) ([]byte, error) {
	switch v := f.(type) {
	case ASiUnix:
		return v.Encode(), nil
	case AES:
		return v.Encode(), nil
	case NTFS:
		return v.Encode(), nil
	case ExtTimestamp:
		return v.Encode(ctx), nil
	case InfoZIPUnix1:
		return v.Encode(ctx), nil
	case UnixN:
		return v.Encode(), nil
	case UnicodeField:
		return v.Encode(), nil
	case JarMarker:
		return nil, nil
	case Padding:
		return make([]byte, v.Size), nil
	case Unknown:
		return v.Payload, nil
	default:
		return nil, fmt.Errorf("extrafield: unsupported field type %T", f)
	}
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
func putLE16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}
