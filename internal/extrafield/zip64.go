package extrafield

import "fmt"

// Zip64Presence records which 32-bit fields in the enclosing header carried
// the ZIP64 sentinel (0xFFFFFFFF / 0xFFFF), and therefore have a
// corresponding 64-bit override in this extra field's payload, in the
// canonical order uncompressed size, compressed size, offset, disk number.
type Zip64Presence struct {
	UncompressedSize bool
	CompressedSize   bool
	Offset           bool
	Disk             bool
}

// Zip64 is the decoded ZIP64 extended information extra field (0x0001).
// Only the fields flagged present in the Zip64Presence used to decode it
// carry meaningful values.
type Zip64 struct {
	UncompressedSize uint64
	CompressedSize   uint64
	Offset           uint64
	Disk             uint32
}

// DecodeZip64 parses a ZIP64 extra payload given which fields are expected,
// per spec: payload holds only the overridden fields, in order. A length
// mismatch (too short for the fields presence demands) is InvalidFormat.
func DecodeZip64(payload []byte, presence Zip64Presence) (Zip64, error) {
	var z Zip64
	take64 := func() (uint64, error) {
		if len(payload) < 8 {
			return 0, fmt.Errorf("extrafield: zip64 extra too short")
		}
		v := le64(payload)
		payload = payload[8:]
		return v, nil
	}
	take32 := func() (uint32, error) {
		if len(payload) < 4 {
			return 0, fmt.Errorf("extrafield: zip64 extra too short")
		}
		v := le32(payload)
		payload = payload[4:]
		return v, nil
	}

	var err error
	if presence.UncompressedSize {
		if z.UncompressedSize, err = take64(); err != nil {
			return Zip64{}, err
		}
	}
	if presence.CompressedSize {
		if z.CompressedSize, err = take64(); err != nil {
			return Zip64{}, err
		}
	}
	if presence.Offset {
		if z.Offset, err = take64(); err != nil {
			return Zip64{}, err
		}
	}
	if presence.Disk {
		if z.Disk, err = take32(); err != nil {
			return Zip64{}, err
		}
	}
	return z, nil
}

// EncodeZip64 renders the fields flagged in presence, in canonical order.
func EncodeZip64(z Zip64, presence Zip64Presence) []byte {
	var buf []byte
	if presence.UncompressedSize {
		var b [8]byte
		putLE64(b[:], z.UncompressedSize)
		buf = append(buf, b[:]...)
	}
	if presence.CompressedSize {
		var b [8]byte
		putLE64(b[:], z.CompressedSize)
		buf = append(buf, b[:]...)
	}
	if presence.Offset {
		var b [8]byte
		putLE64(b[:], z.Offset)
		buf = append(buf, b[:]...)
	}
	if presence.Disk {
		var b [4]byte
		putLE32(b[:], z.Disk)
		buf = append(buf, b[:]...)
	}
	return buf
}
