package extrafield

import "fmt"

// InfoZIPUnix1 is the original Info-ZIP UNIX extra field (0x5855): access
// and modification times as 32-bit Unix seconds, optionally followed in
// the local-header copy by 16-bit uid/gid.
type InfoZIPUnix1 struct {
	AccessTime uint32
	ModTime    uint32
	UID, GID   uint16
	HasIDs     bool
}

func (u InfoZIPUnix1) HeaderID() uint16 { return IDInfoZIPUnix1 }

func DecodeInfoZIPUnix1(payload []byte, ctx Context) (InfoZIPUnix1, error) {
	if len(payload) < 8 {
		return InfoZIPUnix1{}, fmt.Errorf("extrafield: info-zip unix extra too short")
	}
	u := InfoZIPUnix1{AccessTime: le32(payload), ModTime: le32(payload[4:])}
	if ctx == Local && len(payload) >= 12 {
		u.UID = le16(payload[8:])
		u.GID = le16(payload[10:])
		u.HasIDs = true
	}
	return u, nil
}

// Encode renders the payload for ctx; uid/gid only ever appear in the
// local-header copy.
func (u InfoZIPUnix1) Encode(ctx Context) []byte {
	size := 8
	if ctx == Local && u.HasIDs {
		size = 12
	}
	buf := make([]byte, size)
	putLE32(buf, u.AccessTime)
	putLE32(buf[4:], u.ModTime)
	if size == 12 {
		putLE16(buf[8:], u.UID)
		putLE16(buf[10:], u.GID)
	}
	return buf
}
