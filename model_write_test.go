package zipkit

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go4.org/readerutil"

	"github.com/go-zipkit/zipkit/internal/container"
)

func roundTrip(t *testing.T, m *Model) *Model {
	t.Helper()
	target := &BufferWriteTarget{}
	if err := m.Write(target); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	b := target.Bytes()
	got, err := Parse(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return got
}

func TestWriteParseRoundTripStore(t *testing.T) {
	m := NewModel()
	if _, err := m.Add("hello.txt", BytesSource("hello, world"), EntryOptions{Compression: Store}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got := roundTrip(t, m)
	b, err := got.ReadEntry("hello.txt")
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if string(b) != "hello, world" {
		t.Errorf("got %q", b)
	}
}

func TestWriteParseRoundTripDeflate(t *testing.T) {
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 200)
	m := NewModel()
	if _, err := m.Add("big.txt", BytesSource(payload), EntryOptions{Compression: Deflate, CompressionLevel: 6}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got := roundTrip(t, m)
	b, err := got.ReadEntry("big.txt")
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if !bytes.Equal(b, payload) {
		t.Errorf("round-tripped content mismatch, got %d bytes want %d", len(b), len(payload))
	}
}

func TestWriteParseRoundTripBzip2(t *testing.T) {
	payload := bytes.Repeat([]byte("bzip2 compresses this block of redundant text. "), 500)
	m := NewModel()
	if _, err := m.Add("archive.log", BytesSource(payload), EntryOptions{Compression: Bzip2}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got := roundTrip(t, m)
	b, err := got.ReadEntry("archive.log")
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if !bytes.Equal(b, payload) {
		t.Errorf("round-tripped content mismatch, got %d bytes want %d", len(b), len(payload))
	}
}

func TestWriteParseRoundTripPKWAREEncryption(t *testing.T) {
	m := NewModel()
	_, err := m.Add("secret.txt", BytesSource("need to know basis"), EntryOptions{
		Compression: Deflate,
		Encryption:  PKWAREEncryption,
		Password:    []byte("correcthorsebatterystaple"),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	got := roundTrip(t, m)
	e := got.Entry("secret.txt")
	e.Password = []byte("correcthorsebatterystaple")
	b, err := got.ReadEntry("secret.txt")
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if string(b) != "need to know basis" {
		t.Errorf("got %q", b)
	}
}

func TestWriteParseRoundTripPKWAREWrongPasswordFails(t *testing.T) {
	m := NewModel()
	_, err := m.Add("secret.txt", BytesSource("need to know basis"), EntryOptions{
		Encryption: PKWAREEncryption,
		Password:   []byte("correcthorsebatterystaple"),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	got := roundTrip(t, m)
	e := got.Entry("secret.txt")
	e.Password = []byte("wrong password")
	if _, err := got.ReadEntry("secret.txt"); KindOf(err) != Authentication {
		t.Errorf("KindOf = %v, want %v", KindOf(err), Authentication)
	}
}

func TestWriteParseRoundTripAES256(t *testing.T) {
	m := NewModel()
	_, err := m.Add("secret.bin", BytesSource(bytes.Repeat([]byte{0x42}, 4096)), EntryOptions{
		Compression: Deflate,
		Encryption:  AES256,
		Password:    []byte("correcthorsebatterystaple"),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	got := roundTrip(t, m)
	e := got.Entry("secret.bin")
	e.Password = []byte("correcthorsebatterystaple")
	b, err := got.ReadEntry("secret.bin")
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if !bytes.Equal(b, bytes.Repeat([]byte{0x42}, 4096)) {
		t.Errorf("round-tripped content mismatch")
	}
}

func TestWriteParseRoundTripAESWrongPasswordFails(t *testing.T) {
	m := NewModel()
	_, err := m.Add("secret.bin", BytesSource([]byte("payload")), EntryOptions{
		Encryption: AES128,
		Password:   []byte("correcthorsebatterystaple"),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	got := roundTrip(t, m)
	e := got.Entry("secret.bin")
	e.Password = []byte("wrong password")
	if _, err := got.ReadEntry("secret.bin"); KindOf(err) != Authentication {
		t.Errorf("KindOf = %v, want %v", KindOf(err), Authentication)
	}
}

func TestWriteParseRoundTripDirectoryEntry(t *testing.T) {
	m := NewModel()
	if _, err := m.Add("dir/", nil, EntryOptions{}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got := roundTrip(t, m)
	e := got.Entry("dir/")
	if e == nil || !e.IsDir() {
		t.Fatalf("expected directory entry to round-trip, got %v", e)
	}
	b, err := got.ReadEntry("dir/")
	if err != nil || b != nil {
		t.Errorf("ReadEntry on a directory = (%v, %v), want (nil, nil)", b, err)
	}
}

func TestWriteParseRoundTripPathSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("read from disk"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	m := NewModel()
	if _, err := m.Add("note.txt", PathSource(path), EntryOptions{Compression: Deflate}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got := roundTrip(t, m)
	b, err := got.ReadEntry("note.txt")
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if string(b) != "read from disk" {
		t.Errorf("got %q", b)
	}
}

func TestWriteParseRoundTripAlignment(t *testing.T) {
	m := NewModel()
	m.Align = 4
	for i := 0; i < 5; i++ {
		name := string(rune('a' + i))
		if _, err := m.Add(name, BytesSource([]byte(name)), EntryOptions{Compression: Store}); err != nil {
			t.Fatalf("Add(%s): %v", name, err)
		}
	}
	got := roundTrip(t, m)
	for i := 0; i < 5; i++ {
		name := string(rune('a' + i))
		b, err := got.ReadEntry(name)
		if err != nil {
			t.Fatalf("ReadEntry(%s): %v", name, err)
		}
		if string(b) != name {
			t.Errorf("ReadEntry(%s) = %q", name, b)
		}
	}
}

func TestWriteParsePassThroughPreservesRawBytes(t *testing.T) {
	m := NewModel()
	if _, err := m.Add("unchanged.txt", BytesSource("don't touch me"), EntryOptions{Compression: Deflate}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	target := &BufferWriteTarget{}
	if err := m.Write(target); err != nil {
		t.Fatalf("Write: %v", err)
	}
	first := append([]byte(nil), target.Bytes()...)

	parsed, err := Parse(bytes.NewReader(first), int64(len(first)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	second := &BufferWriteTarget{}
	if err := parsed.Write(second); err != nil {
		t.Fatalf("re-Write: %v", err)
	}
	if !bytes.Equal(first, second.Bytes()) {
		t.Errorf("pass-through re-write produced different bytes than the original write")
	}
}

func TestEmptyModelWritesBareEOCD(t *testing.T) {
	m := NewModel()
	target := &BufferWriteTarget{}
	if err := m.Write(target); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(target.Bytes()) != 22 {
		t.Errorf("empty archive = %d bytes, want the 22-byte EOCD alone", len(target.Bytes()))
	}
	got, err := Parse(bytes.NewReader(target.Bytes()), int64(len(target.Bytes())))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got.Entries()) != 0 {
		t.Errorf("got %d entries, want 0", len(got.Entries()))
	}
}

func TestWriteRejectsOversizeArchiveComment(t *testing.T) {
	m := NewModel()
	m.Comment = strings.Repeat("c", 65536)
	if err := m.Write(&BufferWriteTarget{}); KindOf(err) != InvalidArgument {
		t.Errorf("KindOf = %v, want %v", KindOf(err), InvalidArgument)
	}
}

// TestPKWAREStoreCiphertextOverhead pins down the PKWARE framing: the
// ciphertext is exactly the payload plus the 12-byte decryption header.
func TestPKWAREStoreCiphertextOverhead(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAA}, 100000)
	m := NewModel()
	if _, err := m.Add("blob.bin", BytesSource(payload), EntryOptions{
		Compression: Store,
		Encryption:  PKWAREEncryption,
		Password:    []byte("secret"),
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	target := &BufferWriteTarget{}
	if err := m.Write(target); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if e := m.Entry("blob.bin"); e.CompressedSize != 100012 {
		t.Errorf("CompressedSize = %d, want 100012 (payload + 12-byte header)", e.CompressedSize)
	}

	b := target.Bytes()
	got, err := Parse(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got.Entry("blob.bin").Password = []byte("secret")
	plain, err := got.ReadEntry("blob.bin")
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if !bytes.Equal(plain, payload) {
		t.Errorf("round-tripped content mismatch")
	}
}

// TestAES256StoreCiphertextOverhead pins down the AE framing: 16-byte salt,
// 2-byte password verifier, the CTR ciphertext, and the 10-byte MAC tag.
func TestAES256StoreCiphertextOverhead(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAA}, 100000)
	m := NewModel()
	if _, err := m.Add("blob.bin", BytesSource(payload), EntryOptions{
		Compression: Store,
		Encryption:  AES256,
		Password:    []byte("secret"),
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	target := &BufferWriteTarget{}
	if err := m.Write(target); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if e := m.Entry("blob.bin"); e.CompressedSize != 100028 {
		t.Errorf("CompressedSize = %d, want 100028 (16 salt + 2 verifier + payload + 10 MAC)", e.CompressedSize)
	}

	b := target.Bytes()
	got, err := Parse(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got.Entry("blob.bin").Password = []byte("secret")
	plain, err := got.ReadEntry("blob.bin")
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if !bytes.Equal(plain, payload) {
		t.Errorf("round-tripped content mismatch")
	}
}

func TestAESVendorVersionControlsStoredCRC(t *testing.T) {
	payload := []byte("crc visibility depends on the AE variant")
	m := NewModel()
	if _, err := m.Add("ae2.bin", BytesSource(payload), EntryOptions{
		Encryption: AES256,
		Password:   []byte("pw"),
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := m.Add("ae1.bin", BytesSource(payload), EntryOptions{
		Encryption:       AES256,
		Password:         []byte("pw"),
		AESVendorVersion: 1,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := m.Write(&BufferWriteTarget{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if crc := m.Entry("ae2.bin").CRC32; crc != 0 {
		t.Errorf("AE-2 entry stored CRC32 %#x, want 0", crc)
	}
	if crc := m.Entry("ae1.bin").CRC32; crc == 0 {
		t.Error("AE-1 entry must keep its real CRC32")
	}
}

func TestRenameKeepsEntryReadableAfterRewrite(t *testing.T) {
	m := NewModel()
	if _, err := m.Add("old-name.txt", BytesSource("stable payload"), EntryOptions{Compression: Deflate}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	first := &BufferWriteTarget{}
	if err := m.Write(first); err != nil {
		t.Fatalf("Write: %v", err)
	}
	parsed, err := Parse(bytes.NewReader(first.Bytes()), int64(len(first.Bytes())))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := parsed.Rename("old-name.txt", "new-name.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if e := parsed.Entry("new-name.txt"); !e.passThroughEligible() {
		t.Error("a rename must not force the entry out of pass-through")
	}

	second := &BufferWriteTarget{}
	if err := parsed.Write(second); err != nil {
		t.Fatalf("re-Write: %v", err)
	}
	got, err := Parse(bytes.NewReader(second.Bytes()), int64(len(second.Bytes())))
	if err != nil {
		t.Fatalf("Parse after rename: %v", err)
	}
	b, err := got.ReadEntry("new-name.txt")
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if string(b) != "stable payload" {
		t.Errorf("got %q", b)
	}
}

func TestSetCompressionReencodesArchiveEntry(t *testing.T) {
	payload := bytes.Repeat([]byte("re-encode me. "), 300)
	m := NewModel()
	if _, err := m.Add("data.txt", BytesSource(payload), EntryOptions{Compression: Store}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	first := &BufferWriteTarget{}
	if err := m.Write(first); err != nil {
		t.Fatalf("Write: %v", err)
	}
	parsed, err := Parse(bytes.NewReader(first.Bytes()), int64(len(first.Bytes())))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := parsed.SetCompression("data.txt", Deflate, 6); err != nil {
		t.Fatalf("SetCompression: %v", err)
	}

	second := &BufferWriteTarget{}
	if err := parsed.Write(second); err != nil {
		t.Fatalf("re-Write: %v", err)
	}
	got, err := Parse(bytes.NewReader(second.Bytes()), int64(len(second.Bytes())))
	if err != nil {
		t.Fatalf("Parse after recompression: %v", err)
	}
	e := got.Entry("data.txt")
	if e.Compression != Deflate {
		t.Errorf("Compression = %d, want Deflate", e.Compression)
	}
	if e.CompressedSize >= uint64(len(payload)) {
		t.Errorf("deflated size %d is not smaller than the %d-byte payload", e.CompressedSize, len(payload))
	}
	b, err := got.ReadEntry("data.txt")
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if !bytes.Equal(b, payload) {
		t.Errorf("re-encoded content mismatch")
	}
}

func TestAlignedStorePayloadOffsets(t *testing.T) {
	m := NewModel()
	m.Align = 4
	names := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	for _, name := range names {
		if _, err := m.Add(name, BytesSource([]byte(name)), EntryOptions{Compression: Store}); err != nil {
			t.Fatalf("Add(%s): %v", name, err)
		}
	}
	target := &BufferWriteTarget{}
	if err := m.Write(target); err != nil {
		t.Fatalf("Write: %v", err)
	}

	b := target.Bytes()
	got, err := Parse(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	reader := bytes.NewReader(b)
	for _, name := range names {
		src := got.Entry(name).source.(*archiveSource)
		lfh, err := container.ReadLocalHeader(reader, src.lfhOffset)
		if err != nil {
			t.Fatalf("ReadLocalHeader(%s): %v", name, err)
		}
		payloadOffset := src.lfhOffset + lfh.HeaderLen
		if payloadOffset%4 != 0 {
			t.Errorf("entry %s payload offset %d is not 4-byte aligned", name, payloadOffset)
		}
	}
}

// TestZip64BoundaryEntrySize exercises the promotion to ZIP64 fields for an
// entry whose declared uncompressed size crosses the 32-bit sentinel, using
// a reader built from repeated views over one small backing block so the
// input needs no gigabytes of backing memory; the written archive itself
// is still held in memory.
func TestZip64BoundaryEntrySize(t *testing.T) {
	if testing.Short() {
		t.Skip("writes a >4GiB archive into memory")
	}
	block := bytes.Repeat([]byte("A"), 1<<20)
	const repeats = 1<<32/(1<<20) + 4 // a little over 4GiB total
	readers := make([]readerutil.SizeReaderAt, repeats)
	for i := range readers {
		readers[i] = bytes.NewReader(block)
	}
	big := readerutil.NewMultiReaderAt(readers...)

	m := NewModel()
	if _, err := m.Add("huge.bin", StreamSource{R: io.NewSectionReader(big, 0, big.Size())}, EntryOptions{Compression: Store}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	target := &BufferWriteTarget{}
	if err := m.Write(target); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b := target.Bytes()
	got, err := Parse(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	e := got.Entry("huge.bin")
	if e == nil {
		t.Fatal("expected huge.bin to survive the round trip")
	}
	if e.UncompressedSize != uint64(big.Size()) {
		t.Errorf("UncompressedSize = %d, want %d", e.UncompressedSize, big.Size())
	}
	if e.UncompressedSize <= 1<<32 {
		t.Fatalf("test fixture did not actually cross the ZIP64 sentinel: %d bytes", e.UncompressedSize)
	}
}
