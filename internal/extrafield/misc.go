package extrafield

// JarMarker is the zero-payload JAR marker extra field (0xCAFE) some tools
// write so launchers can tell a JAR apart from a plain ZIP.
type JarMarker struct{}

func (JarMarker) HeaderID() uint16 { return IDJarMarker }

// Padding is a no-op placeholder extra field (0xD935) used to align
// entries to a byte boundary without disturbing any other extra field.
// Size is the number of zero payload bytes to emit.
type Padding struct {
	Size int
}

func (Padding) HeaderID() uint16 { return IDPadding }
