package zipkit

import "unicode/utf8"

// detectUTF8 reports whether s is valid UTF-8, and whether it requires
// the UTF-8 flag to round-trip correctly (i.e. is not compatible with
// CP-437/ASCII). Adapted from the same heuristic most ZIP writers use:
// forbid the bytes common legacy codepages remap to local currency or
// overline glyphs, so names typed in those codepages don't silently get
// the UTF-8 bit set when they didn't need it.
func detectUTF8(s string) (valid, require bool) {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r < 0x20 || r > 0x7d || r == 0x5c {
			if !utf8.ValidRune(r) || (r == utf8.RuneError && size == 1) {
				return false, false
			}
			require = true
		}
	}
	return true, require
}
