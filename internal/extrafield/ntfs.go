package extrafield

// NTFS is the NTFS timestamps extra field (0x000A): three 64-bit
// 100-nanosecond tick counts since 1601-01-01, carried in sub-tag 1.
// Other sub-tags (if present) are ignored, matching how every reader in
// practice treats this field.
type NTFS struct {
	Mtime, Atime, Ctime uint64 // 100ns ticks since 1601-01-01
}

func (n NTFS) HeaderID() uint16 { return IDNTFS }

// DecodeNTFS scans the reserved-u32 + repeated (tag,size,data) sub-blocks
// for sub-tag 1 (size 24: mtime, atime, ctime).
func DecodeNTFS(payload []byte) (NTFS, error) {
	var n NTFS
	if len(payload) < 4 {
		return n, nil
	}
	b := payload[4:]
	for len(b) >= 4 {
		tag := le16(b)
		size := int(le16(b[2:]))
		b = b[4:]
		if size > len(b) {
			break
		}
		if tag == 1 && size >= 24 {
			n.Mtime = le64(b)
			n.Atime = le64(b[8:])
			n.Ctime = le64(b[16:])
		}
		b = b[size:]
	}
	return n, nil
}

// Encode renders the reserved field plus a single sub-tag-1 block.
func (n NTFS) Encode() []byte {
	buf := make([]byte, 4+4+24)
	// buf[0:4] reserved, left zero
	putLE16(buf[4:], 1)
	putLE16(buf[6:], 24)
	putLE64(buf[8:], n.Mtime)
	putLE64(buf[16:], n.Atime)
	putLE64(buf[24:], n.Ctime)
	return buf
}
