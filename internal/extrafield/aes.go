package extrafield

import "fmt"

// AES is the WinZip AES extra field (0x9901), present whenever the
// on-disk compression method is 99. It carries the real compression
// method and the AES key strength; vendor ID is always "AE".
type AES struct {
	VendorVersion uint16 // 1 = AE-1, 2 = AE-2
	Strength      byte   // 1=128, 2=192, 3=256
	Method        uint16 // the true compression method
}

// DecodeAES parses the 7-byte AES extra field payload.
func DecodeAES(payload []byte) (AES, error) {
	if len(payload) < 7 {
		return AES{}, fmt.Errorf("extrafield: aes extra too short")
	}
	if payload[2] != 'A' || payload[3] != 'E' {
		return AES{}, fmt.Errorf("extrafield: aes extra has bad vendor id")
	}
	return AES{
		VendorVersion: le16(payload),
		Strength:      payload[4],
		Method:        le16(payload[5:]),
	}, nil
}

// Encode renders the 7-byte AES extra field payload.
func (a AES) Encode() []byte {
	buf := make([]byte, 7)
	putLE16(buf, a.VendorVersion)
	buf[2], buf[3] = 'A', 'E'
	buf[4] = a.Strength
	putLE16(buf[5:], a.Method)
	return buf
}

func (a AES) HeaderID() uint16 { return IDAES }
