package zipkit

import (
	"io"
	"log"
	"regexp"
	"time"
)

// Model is an ordered collection of entries, an archive comment, a
// derived ZIP64 flag, and a byte-alignment boundary. It is the in-memory
// representation produced by Parse and consumed by the write pipeline.
//
// A Model is single-threaded and non-reentrant: callers must externally
// serialize access to one Model from multiple goroutines.
type Model struct {
	Comment string
	Align   int

	// Logger, if set, is where logf sends non-fatal diagnostic notices; no
	// operation of the package calls logf, so nothing is written to it. It
	// is never used to report errors the caller already receives as a
	// return value.
	Logger *log.Logger

	entries []*Entry
	index   map[string]int

	defaultPassword []byte

	// source is the archive Parse populated this Model from, kept open
	// for pass-through reads and lazy LFH verification. It is nil for a
	// Model created empty.
	source     io.ReaderAt
	sourceSize int64
}

// NewModel returns an empty Model.
func NewModel() *Model {
	return &Model{index: make(map[string]int)}
}

func (m *Model) logf(format string, args ...interface{}) {
	if m.Logger != nil {
		m.Logger.Printf(format, args...)
	}
}

// Entries returns the entries in their current serialization order. The
// returned slice must not be mutated directly; use the Model's mutation
// methods instead.
func (m *Model) Entries() []*Entry {
	return m.entries
}

// Entry returns an existing entry by name, or nil if none exists. Use
// ReadEntry to pull the entry's decoded plaintext.
func (m *Model) Entry(name string) *Entry {
	if i, ok := m.index[name]; ok {
		return m.entries[i]
	}
	return nil
}

// Add inserts a new entry. If an entry with the same name already exists,
// Add fails with EntryAlreadyExists unless opts.Replace is set, in which
// case the new entry supersedes the old one and inherits nothing from it.
func (m *Model) Add(name string, source DataSource, opts EntryOptions) (*Entry, error) {
	if len(name) > uint16Max {
		return nil, wrapErr("Add", InvalidArgument, name, errNameTooLong)
	}
	if err := validateCompression(opts.Compression); err != nil {
		return nil, wrapErr("Add", Unsupported, name, err)
	}
	if i, exists := m.index[name]; exists {
		if !opts.Replace {
			return nil, wrapErr("Add", EntryAlreadyExists, name, nil)
		}
		e := newEntry(name, source, opts, m.defaultPassword)
		m.entries[i] = e
		return e, nil
	}

	e := newEntry(name, source, opts, m.defaultPassword)
	m.index[name] = len(m.entries)
	m.entries = append(m.entries, e)
	return e, nil
}

func newEntry(name string, source DataSource, opts EntryOptions, defaultPassword []byte) *Entry {
	modified := opts.Modified
	if modified.IsZero() {
		modified = time.Now()
	}
	password := opts.Password
	if password == nil {
		password = defaultPassword
	}
	e := &Entry{
		Name:             name,
		Comment:          opts.Comment,
		Mode:             opts.Mode,
		Modified:         modified,
		Encryption:       opts.Encryption,
		Password:         password,
		Compression:      opts.Compression,
		CompressionLevel: opts.CompressionLevel,
		AESVendorVersion: opts.AESVendorVersion,
		source:           source,
		dirty:            true,
	}
	if source == nil {
		e.Compression = Store
	}
	return e
}

// Rename changes an entry's name, preserving its position in the
// serialization order. Renaming does not touch the entry's payload bytes,
// so an archive-sourced entry stays eligible for pass-through.
func (m *Model) Rename(oldName, newName string) error {
	i, ok := m.index[oldName]
	if !ok {
		return wrapErr("Rename", EntryNotFound, oldName, nil)
	}
	if oldName == newName {
		return nil
	}
	if _, exists := m.index[newName]; exists {
		return wrapErr("Rename", EntryAlreadyExists, newName, nil)
	}
	if len(newName) > uint16Max {
		return wrapErr("Rename", InvalidArgument, newName, errNameTooLong)
	}
	m.entries[i].Name = newName
	delete(m.index, oldName)
	m.index[newName] = i
	return nil
}

// Delete removes an entry by name.
func (m *Model) Delete(name string) error {
	i, ok := m.index[name]
	if !ok {
		return wrapErr("Delete", EntryNotFound, name, nil)
	}
	m.removeAt(i)
	return nil
}

// DeleteMatching removes every entry whose name matches re, and returns
// the count removed.
func (m *Model) DeleteMatching(re *regexp.Regexp) int {
	removed := 0
	kept := m.entries[:0:0]
	for _, e := range m.entries {
		if re.MatchString(e.Name) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	m.reindex()
	return removed
}

func (m *Model) removeAt(i int) {
	name := m.entries[i].Name
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	delete(m.index, name)
	for n, idx := range m.index {
		if idx > i {
			m.index[n] = idx - 1
		}
	}
}

func (m *Model) reindex() {
	m.index = make(map[string]int, len(m.entries))
	for i, e := range m.entries {
		m.index[e.Name] = i
	}
}

// SetPassword sets the password for a single entry, or, when name is
// empty, the default applied to subsequently-added encrypted entries.
func (m *Model) SetPassword(name string, password []byte) error {
	if name == "" {
		m.defaultPassword = password
		return nil
	}
	e, ok := m.index[name]
	if !ok {
		return wrapErr("SetPassword", EntryNotFound, name, nil)
	}
	m.entries[e].Password = password
	m.entries[e].markDirty()
	return nil
}

// SetCompression changes an entry's compression method and level.
func (m *Model) SetCompression(name string, method uint16, level int) error {
	i, ok := m.index[name]
	if !ok {
		return wrapErr("SetCompression", EntryNotFound, name, nil)
	}
	if err := validateCompression(method); err != nil {
		return wrapErr("SetCompression", Unsupported, name, err)
	}
	m.entries[i].Compression = method
	m.entries[i].CompressionLevel = level
	m.entries[i].markDirty()
	return nil
}

// SetAlign sets the archive's byte-alignment boundary (0 disables
// alignment; typical values are 2 or 4).
func (m *Model) SetAlign(a int) error {
	if a < 0 || a%2 != 0 {
		return wrapErr("SetAlign", InvalidArgument, "", errBadAlign)
	}
	m.Align = a
	return nil
}

func validateCompression(method uint16) error {
	switch method {
	case Store, Deflate, Bzip2:
		return nil
	default:
		return errUnsupportedMethod
	}
}
