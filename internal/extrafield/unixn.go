package extrafield

import "fmt"

// UnixN is the Info-ZIP New Unix Extra Field (0x7875): a version byte
// followed by variable-length uid and gid, each prefixed with its own
// 1-byte size.
type UnixN struct {
	Version byte
	UID     uint64
	GID     uint64
}

func (u UnixN) HeaderID() uint16 { return IDInfoZIPUnixN }

func DecodeUnixN(payload []byte) (UnixN, error) {
	if len(payload) < 1 {
		return UnixN{}, fmt.Errorf("extrafield: unixn extra too short")
	}
	u := UnixN{Version: payload[0]}
	b := payload[1:]

	uid, rest, err := takeSizedInt(b)
	if err != nil {
		return UnixN{}, err
	}
	gid, _, err := takeSizedInt(rest)
	if err != nil {
		return UnixN{}, err
	}
	u.UID, u.GID = uid, gid
	return u, nil
}

func takeSizedInt(b []byte) (uint64, []byte, error) {
	if len(b) < 1 {
		return 0, nil, fmt.Errorf("extrafield: unixn extra truncated")
	}
	size := int(b[0])
	b = b[1:]
	if len(b) < size {
		return 0, nil, fmt.Errorf("extrafield: unixn extra truncated")
	}
	var v uint64
	for i := size - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, b[size:], nil
}

// Encode renders uid/gid as 8-byte little-endian fields (the common case
// in practice, even though the format allows variable width).
func (u UnixN) Encode() []byte {
	buf := make([]byte, 0, 1+1+8+1+8)
	buf = append(buf, u.Version)
	buf = append(buf, 8)
	var b [8]byte
	putLE64(b[:], u.UID)
	buf = append(buf, b[:]...)
	buf = append(buf, 8)
	putLE64(b[:], u.GID)
	buf = append(buf, b[:]...)
	return buf
}
