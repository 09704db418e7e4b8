// Package winzipaes implements WinZip AES encryption (AE-1/AE-2) as
// specified by the WinZip AES extra field (0x9901): PBKDF2-HMAC-SHA1 key
// derivation, AES-CTR with WinZip's non-standard little-endian counter, and
// a truncated HMAC-SHA1 authentication tag.
package winzipaes

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"hash"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// ErrAuthentication is returned when the password verifier or the trailing
// HMAC-SHA1 tag does not match.
var ErrAuthentication = errors.New("winzipaes: incorrect password or corrupt data")

// MacSize is the length of the truncated HMAC-SHA1 authentication tag.
const MacSize = 10

// PwVerifySize is the length of the password verification value.
const PwVerifySize = 2

// Strength identifies the AES key size, matching the 1-byte vendor
// strength field of the AES extra field (1=128, 2=192, 3=256).
type Strength byte

const (
	AES128 Strength = 1
	AES192 Strength = 2
	AES256 Strength = 3
)

// KeyLen returns the AES key length in bytes.
func (s Strength) KeyLen() int {
	switch s {
	case AES128:
		return 16
	case AES192:
		return 24
	case AES256:
		return 32
	default:
		return 0
	}
}

// SaltLen returns the salt length in bytes (always KeyLen/2).
func (s Strength) SaltLen() int { return s.KeyLen() / 2 }

// Valid reports whether s is one of the three defined strengths.
func (s Strength) Valid() bool { return s.KeyLen() != 0 }

const pbkdf2Iterations = 1000

func deriveKeys(password, salt []byte, strength Strength) (encKey, macKey, pwVerify []byte) {
	keyLen := strength.KeyLen()
	dk := pbkdf2.Key(password, salt, pbkdf2Iterations, 2*keyLen+PwVerifySize, sha1.New)
	return dk[:keyLen], dk[keyLen : 2*keyLen], dk[2*keyLen : 2*keyLen+PwVerifySize]
}

// ctrState implements the WinZip AES-CTR counter layout: a little-endian
// 64-bit block counter occupying the low 8 bytes of the 16-byte IV, the
// high 8 bytes always zero, starting at 1 and incrementing once per
// 16-byte keystream block (including a final partial block).
type ctrState struct {
	block     cipher.Block
	counter   uint64
	keystream [aes.BlockSize]byte
	pos       int
}

func newCTRState(block cipher.Block) *ctrState {
	return &ctrState{block: block, counter: 1, pos: aes.BlockSize}
}

func (c *ctrState) xor(dst, src []byte) {
	for i := range src {
		if c.pos == aes.BlockSize {
			var iv [aes.BlockSize]byte
			binary.LittleEndian.PutUint64(iv[:8], c.counter)
			c.block.Encrypt(c.keystream[:], iv[:])
			c.counter++
			c.pos = 0
		}
		dst[i] = src[i] ^ c.keystream[c.pos]
		c.pos++
	}
}

// Encryptor encrypts a plaintext stream with WinZip AES, emitting
// salt || pwVerify up front and the HMAC-SHA1 tag from Finish.
type Encryptor struct {
	strength    Strength
	salt        []byte
	ctr         *ctrState
	mac         hash.Hash
	pendingHead []byte
}

// NewEncryptor derives fresh keys for a random salt read from rnd and
// prepares to encrypt. The salt||pwVerify header is returned by the first
// Push/Finish call.
func NewEncryptor(password []byte, strength Strength, rnd io.Reader) (*Encryptor, error) {
	if !strength.Valid() {
		return nil, errors.New("winzipaes: invalid key strength")
	}
	salt := make([]byte, strength.SaltLen())
	if _, err := io.ReadFull(rnd, salt); err != nil {
		return nil, err
	}
	encKey, macKey, pwVerify := deriveKeys(password, salt, strength)
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}

	head := make([]byte, 0, len(salt)+PwVerifySize)
	head = append(head, salt...)
	head = append(head, pwVerify...)

	return &Encryptor{
		strength:    strength,
		salt:        salt,
		ctr:         newCTRState(block),
		mac:         hmac.New(sha1.New, macKey),
		pendingHead: head,
	}, nil
}

func (e *Encryptor) Push(p []byte) ([]byte, error) {
	ciphertext := make([]byte, len(p))
	e.ctr.xor(ciphertext, p)
	e.mac.Write(ciphertext)

	if e.pendingHead == nil {
		return ciphertext, nil
	}
	out := append(e.pendingHead, ciphertext...)
	e.pendingHead = nil
	return out, nil
}

// Finish returns the salt/pwVerify header (if no Push ever ran) followed by
// the truncated HMAC-SHA1 tag.
func (e *Encryptor) Finish() ([]byte, error) {
	out := e.pendingHead
	e.pendingHead = nil
	out = append(out, e.mac.Sum(nil)[:MacSize]...)
	return out, nil
}

// Decryptor decrypts a WinZip AES stream. The trailing MacSize bytes are
// withheld from decryption regardless of how Push calls are chunked, so
// the tag can be verified at Finish without knowing the stream length up
// front.
type Decryptor struct {
	strength Strength
	password []byte

	header     []byte
	headerDone bool

	ctr *ctrState
	mac hash.Hash

	pending []byte
}

func NewDecryptor(password []byte, strength Strength) (*Decryptor, error) {
	if !strength.Valid() {
		return nil, errors.New("winzipaes: invalid key strength")
	}
	return &Decryptor{
		strength: strength,
		password: password,
		header:   make([]byte, 0, strength.SaltLen()+PwVerifySize),
	}, nil
}

func (d *Decryptor) Push(p []byte) ([]byte, error) {
	if !d.headerDone {
		headerLen := d.strength.SaltLen() + PwVerifySize
		need := headerLen - len(d.header)
		if need > len(p) {
			need = len(p)
		}
		d.header = append(d.header, p[:need]...)
		p = p[need:]
		if len(d.header) < headerLen {
			return nil, nil
		}
		d.headerDone = true

		salt := d.header[:d.strength.SaltLen()]
		pwVerify := d.header[d.strength.SaltLen():headerLen]
		encKey, macKey, wantVerify := deriveKeys(d.password, salt, d.strength)
		if !hmac.Equal(pwVerify, wantVerify) {
			return nil, ErrAuthentication
		}
		block, err := aes.NewCipher(encKey)
		if err != nil {
			return nil, err
		}
		d.ctr = newCTRState(block)
		d.mac = hmac.New(sha1.New, macKey)
	}

	combined := append(d.pending, p...)
	if len(combined) <= MacSize {
		d.pending = combined
		return nil, nil
	}
	toProcess := combined[:len(combined)-MacSize]
	d.pending = append([]byte(nil), combined[len(combined)-MacSize:]...)

	d.mac.Write(toProcess)
	plaintext := make([]byte, len(toProcess))
	d.ctr.xor(plaintext, toProcess)
	return plaintext, nil
}

// Finish verifies the withheld trailing MacSize bytes against the computed
// HMAC-SHA1 tag.
func (d *Decryptor) Finish() ([]byte, error) {
	if !d.headerDone || len(d.pending) != MacSize {
		return nil, errors.New("winzipaes: truncated stream")
	}
	want := d.mac.Sum(nil)[:MacSize]
	if !hmac.Equal(d.pending, want) {
		return nil, ErrAuthentication
	}
	return nil, nil
}
