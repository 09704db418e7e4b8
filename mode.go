package zipkit

import "os"

// Unix file-type and permission bits, as agreed on by tools even though
// APPNOTE itself never documents them.
const (
	sIFMT   = 0xf000
	sIFSOCK = 0xc000
	sIFLNK  = 0xa000
	sIFREG  = 0x8000
	sIFBLK  = 0x6000
	sIFDIR  = 0x4000
	sIFCHR  = 0x2000
	sIFIFO  = 0x1000
	sISUID  = 0x800
	sISGID  = 0x400
	sISVTX  = 0x200

	msdosDir      = 0x10
	msdosReadOnly = 0x01
)

// externalAttrsForMode packs mode Unix-style into the high 16 bits of the
// external attributes, sets the matching MS-DOS directory and read-only
// bits in the low byte, and always reports the Unix platform for the
// "version made by" high byte.
func externalAttrsForMode(mode os.FileMode) (attrs uint32, platform byte) {
	attrs = fileModeToUnixMode(mode) << 16
	if mode&os.ModeDir != 0 {
		attrs |= msdosDir
	}
	if mode&0200 == 0 {
		attrs |= msdosReadOnly
	}
	return attrs, platformUnix
}

func modeFromExternalAttrs(platform byte, attrs uint32) os.FileMode {
	switch platform {
	case platformUnix, platformOSX:
		return unixModeToFileMode(attrs >> 16)
	case platformNTFS, platformVFAT, platformFAT:
		return msdosModeToFileMode(attrs)
	default:
		return msdosModeToFileMode(attrs)
	}
}

const (
	platformFAT  = 0
	platformUnix = 3
	platformNTFS = 11
	platformVFAT = 14
	platformOSX  = 19
)

func msdosModeToFileMode(m uint32) (mode os.FileMode) {
	if m&msdosDir != 0 {
		mode = os.ModeDir | 0777
	} else {
		mode = 0666
	}
	if m&msdosReadOnly != 0 {
		mode &^= 0222
	}
	return mode
}

func fileModeToUnixMode(mode os.FileMode) uint32 {
	var m uint32
	switch mode & os.ModeType {
	default:
		m = sIFREG
	case os.ModeDir:
		m = sIFDIR
	case os.ModeSymlink:
		m = sIFLNK
	case os.ModeNamedPipe:
		m = sIFIFO
	case os.ModeSocket:
		m = sIFSOCK
	case os.ModeDevice:
		if mode&os.ModeCharDevice != 0 {
			m = sIFCHR
		} else {
			m = sIFBLK
		}
	}
	if mode&os.ModeSetuid != 0 {
		m |= sISUID
	}
	if mode&os.ModeSetgid != 0 {
		m |= sISGID
	}
	if mode&os.ModeSticky != 0 {
		m |= sISVTX
	}
	return m | uint32(mode&0777)
}

func unixModeToFileMode(m uint32) os.FileMode {
	mode := os.FileMode(m & 0777)
	switch m & sIFMT {
	case sIFBLK:
		mode |= os.ModeDevice
	case sIFCHR:
		mode |= os.ModeDevice | os.ModeCharDevice
	case sIFDIR:
		mode |= os.ModeDir
	case sIFIFO:
		mode |= os.ModeNamedPipe
	case sIFLNK:
		mode |= os.ModeSymlink
	case sIFREG:
	case sIFSOCK:
		mode |= os.ModeSocket
	}
	if m&sISGID != 0 {
		mode |= os.ModeSetgid
	}
	if m&sISUID != 0 {
		mode |= os.ModeSetuid
	}
	if m&sISVTX != 0 {
		mode |= os.ModeSticky
	}
	return mode
}
