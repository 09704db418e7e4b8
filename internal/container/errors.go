package container

import "errors"

// ErrFormat is wrapped by every structural parsing failure: a missing or
// inconsistent signature, a truncated record, a length disagreement, or a
// missing ZIP64 extra where a 32-bit sentinel demanded one.
var ErrFormat = errors.New("container: invalid zip format")
