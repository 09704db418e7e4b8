package pkware

import (
	"errors"
	"io"
)

// ErrAuthentication is returned when the 12-byte decryption header's check
// byte does not match the value the caller expected.
var ErrAuthentication = errors.New("pkware: incorrect password or corrupt data")

// Decryptor decrypts a PKWARE Traditional ciphertext stream. It implements
// internal/filter.Filter.
type Decryptor struct {
	k                 keys
	header            []byte
	headerDone        bool
	expectedCheckByte byte
}

// NewDecryptor primes the cipher state with password and prepares to
// verify the 12-byte decryption header against expectedCheckByte (the high
// byte of the CRC-32, or of the DOS time field when a data descriptor is in
// use).
func NewDecryptor(password []byte, expectedCheckByte byte) *Decryptor {
	return &Decryptor{
		k:                 newKeys(password),
		header:            make([]byte, 0, HeaderSize),
		expectedCheckByte: expectedCheckByte,
	}
}

func (d *Decryptor) Push(p []byte) ([]byte, error) {
	i := 0
	if !d.headerDone {
		need := HeaderSize - len(d.header)
		if need > len(p) {
			need = len(p)
		}
		for _, b := range p[:need] {
			pt := b ^ d.k.keystreamByte()
			d.k.update(pt)
			d.header = append(d.header, pt)
		}
		i = need
		if len(d.header) < HeaderSize {
			return nil, nil
		}
		d.headerDone = true
		if d.header[HeaderSize-1] != d.expectedCheckByte {
			return nil, ErrAuthentication
		}
	}

	out := make([]byte, 0, len(p)-i)
	for ; i < len(p); i++ {
		pt := p[i] ^ d.k.keystreamByte()
		d.k.update(pt)
		out = append(out, pt)
	}
	return out, nil
}

// Finish is a no-op: PKWARE Traditional has no trailing authentication tag.
func (d *Decryptor) Finish() ([]byte, error) { return nil, nil }

// Encryptor encrypts a plaintext stream using PKWARE Traditional
// encryption, prefixing the ciphertext with the 12-byte decryption header.
type Encryptor struct {
	k       keys
	pending []byte
}

// NewEncryptor primes the cipher with password, generates the random
// decryption header (its last byte fixed to checkByte) by reading 11 bytes
// from rnd, and encrypts it immediately so the ciphertext header is
// returned on the first Push/Finish call.
func NewEncryptor(password []byte, checkByte byte, rnd io.Reader) (*Encryptor, error) {
	k := newKeys(password)

	var headerPlain [HeaderSize]byte
	if _, err := io.ReadFull(rnd, headerPlain[:HeaderSize-1]); err != nil {
		return nil, err
	}
	headerPlain[HeaderSize-1] = checkByte

	headerCipher := make([]byte, HeaderSize)
	for i, pt := range headerPlain {
		headerCipher[i] = pt ^ k.keystreamByte()
		k.update(pt)
	}

	return &Encryptor{k: k, pending: headerCipher}, nil
}

func (e *Encryptor) Push(p []byte) ([]byte, error) {
	out := make([]byte, 0, len(e.pending)+len(p))
	if e.pending != nil {
		out = append(out, e.pending...)
		e.pending = nil
	}
	for _, pt := range p {
		out = append(out, pt^e.k.keystreamByte())
		e.k.update(pt)
	}
	return out, nil
}

// Finish flushes the decryption header if no payload bytes were ever
// pushed (e.g. a zero-length entry).
func (e *Encryptor) Finish() ([]byte, error) {
	out := e.pending
	e.pending = nil
	return out, nil
}
