package extrafield

// ExtTimestamp is the Info-ZIP extended timestamp extra field (0x5455).
// Flags bit 0/1/2 select whether ModTime/AccessTime/CreateTime are
// present. The central-directory copy of this field conventionally
// carries only ModTime even when the local copy's flags claim more,
// since access/create time are rarely needed by archive tools; Decode
// truncates to whatever the payload actually contains.
type ExtTimestamp struct {
	Flags                           byte
	ModTime, AccessTime, CreateTime uint32
	HasMod, HasAccess, HasCreate    bool
}

func (e ExtTimestamp) HeaderID() uint16 { return IDExtTimestamp }

func DecodeExtTimestamp(payload []byte, ctx Context) (ExtTimestamp, error) {
	var e ExtTimestamp
	if len(payload) < 1 {
		return e, nil
	}
	e.Flags = payload[0]
	b := payload[1:]
	take := func() (uint32, bool) {
		if len(b) < 4 {
			return 0, false
		}
		v := le32(b)
		b = b[4:]
		return v, true
	}
	if e.Flags&0x1 != 0 {
		if v, ok := take(); ok {
			e.ModTime, e.HasMod = v, true
		}
	}
	if ctx == Local && e.Flags&0x2 != 0 {
		if v, ok := take(); ok {
			e.AccessTime, e.HasAccess = v, true
		}
	}
	if ctx == Local && e.Flags&0x4 != 0 {
		if v, ok := take(); ok {
			e.CreateTime, e.HasCreate = v, true
		}
	}
	return e, nil
}

// Encode renders the payload for ctx: the central-directory copy carries
// only ModTime (if present), regardless of which optional fields Flags
// claims, matching common Info-ZIP practice.
func (e ExtTimestamp) Encode(ctx Context) []byte {
	flags := byte(0)
	if e.HasMod {
		flags |= 0x1
	}
	if ctx == Local && e.HasAccess {
		flags |= 0x2
	}
	if ctx == Local && e.HasCreate {
		flags |= 0x4
	}

	buf := []byte{flags}
	if e.HasMod {
		var b [4]byte
		putLE32(b[:], e.ModTime)
		buf = append(buf, b[:]...)
	}
	if ctx == Local && e.HasAccess {
		var b [4]byte
		putLE32(b[:], e.AccessTime)
		buf = append(buf, b[:]...)
	}
	if ctx == Local && e.HasCreate {
		var b [4]byte
		putLE32(b[:], e.CreateTime)
		buf = append(buf, b[:]...)
	}
	return buf
}
