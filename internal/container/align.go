package container

import "github.com/go-zipkit/zipkit/internal/extrafield"

// LocalHeaderLen returns the combined size of the fixed Local File Header
// plus a name of the given length, i.e. the header length before any
// extra field bytes.
func LocalHeaderLen(nameLen int) int {
	return localHeaderFixedLen + nameLen
}

// PaddingFor computes the payload size of the 0xD935 padding extra field
// an aligned entry must carry so that its payload starts at a multiple of
// align bytes, given the byte offset the Local File Header itself starts
// at and the size of every extra field that will precede the padding
// block. The caller always appends a padding block of the returned size
// (possibly zero payload bytes): the block's own 4 header bytes are part
// of the alignment arithmetic, so omitting it when the size comes out
// zero would shift the payload back off the boundary.
//
// headerFixedAndNameLen is localHeaderFixedLen plus the entry name length;
// otherExtraLen is the combined size of every other extra field block
// (ID+size+payload) that will be written before the padding block.
func PaddingFor(localHeaderOffset int64, align int, headerFixedAndNameLen, otherExtraLen int) int {
	if align <= 1 {
		return 0
	}
	const paddingBlockHeader = 4
	payloadStart := localHeaderOffset + int64(headerFixedAndNameLen) + int64(otherExtraLen) + paddingBlockHeader
	rem := int(payloadStart % int64(align))
	return (align - rem) % align
}

// EncodePadding builds a 0xD935 padding extra field of the given payload
// size, filled with zero bytes.
func EncodePadding(size int) []byte {
	return extrafield.EncodeBlock(extrafield.IDPadding, make([]byte, size))
}
