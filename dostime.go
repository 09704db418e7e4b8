package zipkit

import "time"

// dosTime converts a time.Time to the legacy MS-DOS date/time pair stored
// in every Local File Header and Central Directory Header. The format has
// 2-second resolution and no timezone, which is why zipkit also emits an
// extended-timestamp extra field for every entry it encodes.
func dosTime(t time.Time) (date, tod uint16) {
	if t.IsZero() {
		t = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if t.Year() < 1980 {
		t = time.Date(1980, 1, 1, 0, 0, 0, 0, t.Location())
	}
	date = uint16(t.Day() + int(t.Month())<<5 + (t.Year()-1980)<<9)
	tod = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)
	return
}

// dosTimeToTime reconstructs a time.Time from the MS-DOS date/time pair,
// interpreted in loc (UTC unless an extended-timestamp extra field says
// otherwise).
func dosTimeToTime(date, tod uint16, loc *time.Location) time.Time {
	return time.Date(
		int(date>>9)+1980,
		time.Month(date>>5&0xf),
		int(date&0x1f),
		int(tod>>11),
		int(tod>>5&0x3f),
		int(tod&0x1f)*2,
		0,
		loc,
	)
}
