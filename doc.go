// Package zipkit builds and reads ZIP archives, including PKWARE
// traditional and WinZip AES encryption, Deflate and Bzip2 compression, and
// ZIP64 extensions for archives or entries that exceed the 32-bit format
// limits.
//
// A Model holds an ordered set of Entries in memory. Parse populates a
// Model from an existing archive; Add, Rename, Delete and the Set*
// mutators build or change one from scratch. Write serializes a Model to
// a WriteTarget, re-emitting any untouched entry's original bytes
// unchanged and re-encoding only what was added or modified.
//
// See https://www.pkware.com/appnote for the container format this
// package implements.
package zipkit
