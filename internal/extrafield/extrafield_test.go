package extrafield

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseAndEncodeBlockRoundTrip(t *testing.T) {
	raw := EncodeBlock(0x1234, []byte("payload bytes"))
	blocks := ParseBlocks(raw)
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}
	if blocks[0].ID != 0x1234 {
		t.Errorf("ID = %#x, want %#x", blocks[0].ID, 0x1234)
	}
	if !bytes.Equal(blocks[0].Payload, []byte("payload bytes")) {
		t.Errorf("Payload = %q", blocks[0].Payload)
	}
}

func TestParseBlocksDropsTruncatedTrailer(t *testing.T) {
	raw := EncodeBlock(1, []byte("ok"))
	raw = append(raw, 0x01, 0x00, 0xFF) // a dangling, too-short header
	blocks := ParseBlocks(raw)
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1 (trailing garbage should be dropped)", len(blocks))
	}
}

func TestASiUnixRoundTrip(t *testing.T) {
	a := ASiUnix{Mode: sIFREG | 0644, SizDev: 0, UID: 1000, GID: 1000}
	encoded := a.Encode()
	got, err := DecodeASiUnix(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if got != a {
		t.Errorf("got %+v, want %+v", got, a)
	}
}

func TestASiUnixKnownPayload(t *testing.T) {
	// A directory entry, mode 040755, uid=gid=1000, no symlink target.
	want := ASiUnix{Mode: 040755, UID: 1000, GID: 1000}
	payload := []byte("#\x06\\\xF6\xEDA\x00\x00\x00\x00\xE8\x03\xE8\x03")

	if got := want.Encode(); !bytes.Equal(got, payload) {
		t.Errorf("Encode() = % x, want % x", got, payload)
	}
	got, err := DecodeASiUnix(payload)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestASiUnixCorruptCRCPrefix(t *testing.T) {
	// Same payload as above with the stored CRC-32 damaged.
	payload := []byte("\x01\x06\\\xF6\xEDA\x00\x00\x00\x00\xE8\x03\xE8\x03")
	_, err := DecodeASiUnix(payload)
	if !errors.Is(err, ErrCrc32Mismatch) {
		t.Fatalf("got %v, want ErrCrc32Mismatch", err)
	}
	if !strings.Contains(err.Error(), "expected CRC32 value") {
		t.Errorf("error %q should name the expected CRC32 value", err)
	}
}

func TestASiUnixCRCMismatch(t *testing.T) {
	a := ASiUnix{Mode: sIFREG | 0644, UID: 1, GID: 1}
	encoded := a.Encode()
	encoded[10] ^= 0xFF // corrupt a byte covered by the CRC
	_, err := DecodeASiUnix(encoded)
	if err == nil {
		t.Fatal("expected a CRC mismatch error")
	}
}

func TestASiUnixSetLink(t *testing.T) {
	a := ASiUnix{Mode: sIFREG | 0755}
	a.SetLink("target/path")
	if a.Mode&sIFMT != sIFLNK {
		t.Errorf("Mode = %#o, want S_IFLNK bit set", a.Mode)
	}
	if a.Link != "target/path" {
		t.Errorf("Link = %q", a.Link)
	}

	a.SetLink("")
	if a.Mode&sIFMT != sIFREG {
		t.Errorf("Mode = %#o, want S_IFREG restored after clearing link", a.Mode)
	}
	if a.Link != "" {
		t.Errorf("Link = %q, want empty", a.Link)
	}
}

func TestAESExtraRoundTrip(t *testing.T) {
	a := AES{VendorVersion: 2, Strength: 3, Method: 8}
	got, err := DecodeAES(a.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if got != a {
		t.Errorf("got %+v, want %+v", got, a)
	}
}

func TestAESExtraBadVendorID(t *testing.T) {
	a := AES{VendorVersion: 2, Strength: 3, Method: 8}
	encoded := a.Encode()
	encoded[2], encoded[3] = 'X', 'X'
	if _, err := DecodeAES(encoded); err == nil {
		t.Fatal("expected an error for a bad vendor ID")
	}
}

func TestNTFSRoundTrip(t *testing.T) {
	n := NTFS{Mtime: 132223200000000000, Atime: 132223200000000000, Ctime: 132223100000000000}
	got, err := DecodeNTFS(n.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if got != n {
		t.Errorf("got %+v, want %+v", got, n)
	}
}

func TestExtTimestampLocalKeepsAllFields(t *testing.T) {
	e := ExtTimestamp{Flags: 0x7, HasMod: true, ModTime: 1000, HasAccess: true, AccessTime: 2000, HasCreate: true, CreateTime: 3000}
	got, err := DecodeExtTimestamp(e.Encode(Local), Local)
	if err != nil {
		t.Fatal(err)
	}
	if got != e {
		t.Errorf("got %+v, want %+v", got, e)
	}
}

func TestExtTimestampCentralDropsAccessAndCreate(t *testing.T) {
	e := ExtTimestamp{HasMod: true, ModTime: 1000, HasAccess: true, AccessTime: 2000, HasCreate: true, CreateTime: 3000}
	encoded := e.Encode(Central)
	got, err := DecodeExtTimestamp(encoded, Central)
	if err != nil {
		t.Fatal(err)
	}
	want := ExtTimestamp{Flags: 0x1, HasMod: true, ModTime: 1000}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestInfoZIPUnix1RoundTrip(t *testing.T) {
	u := InfoZIPUnix1{AccessTime: 1600000000, ModTime: 1600000100, UID: 1000, GID: 100, HasIDs: true}
	got, err := DecodeInfoZIPUnix1(u.Encode(Local), Local)
	if err != nil {
		t.Fatal(err)
	}
	if got != u {
		t.Errorf("got %+v, want %+v", got, u)
	}
}

func TestInfoZIPUnix1CentralDropsIDs(t *testing.T) {
	u := InfoZIPUnix1{AccessTime: 1, ModTime: 2, UID: 3, GID: 4, HasIDs: true}
	encoded := u.Encode(Central)
	if len(encoded) != 8 {
		t.Fatalf("central payload = %d bytes, want 8 (times only)", len(encoded))
	}
	got, err := DecodeInfoZIPUnix1(encoded, Central)
	if err != nil {
		t.Fatal(err)
	}
	want := InfoZIPUnix1{AccessTime: 1, ModTime: 2}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestUnixNRoundTrip(t *testing.T) {
	u := UnixN{Version: 1, UID: 12345, GID: 6789}
	got, err := DecodeUnixN(u.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if got != u {
		t.Errorf("got %+v, want %+v", got, u)
	}
}

func TestUnicodePathRoundTrip(t *testing.T) {
	u := NewUnicodePath(0xDEADBEEF, "naïve/résumé.txt")
	got, err := DecodeUnicodeField(IDUnicodePath, u.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if got != u {
		t.Errorf("got %+v, want %+v", got, u)
	}
}

func TestZip64PresenceOrdering(t *testing.T) {
	presence := Zip64Presence{UncompressedSize: true, CompressedSize: true, Offset: true}
	z := Zip64{UncompressedSize: 1 << 33, CompressedSize: 1 << 32, Offset: 1 << 31}
	encoded := EncodeZip64(z, presence)
	if len(encoded) != 24 {
		t.Fatalf("encoded len = %d, want 24 for three present 64-bit fields", len(encoded))
	}
	got, err := DecodeZip64(encoded, presence)
	if err != nil {
		t.Fatal(err)
	}
	if got != z {
		t.Errorf("got %+v, want %+v", got, z)
	}
}

func TestZip64DecodeTooShortFails(t *testing.T) {
	presence := Zip64Presence{UncompressedSize: true, CompressedSize: true}
	_, err := DecodeZip64(make([]byte, 8), presence)
	if err == nil {
		t.Fatal("expected an error decoding a truncated ZIP64 extra")
	}
}

func TestUnknownFieldRoundTripsVerbatim(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	f, err := Decode(0xBEEF, payload, Local)
	if err != nil {
		t.Fatal(err)
	}
	u, ok := f.(Unknown)
	if !ok {
		t.Fatalf("got %T, want Unknown", f)
	}
	encoded, err := Encode(u, Local)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(encoded, payload) {
		t.Errorf("got %x, want %x", encoded, payload)
	}
}
