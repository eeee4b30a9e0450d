package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// DefaultMaxPasswordBytes caps plaintext length when Config.MaxPasswordBytes is
// zero. Argon2 cost scales with input size, so unbounded input is a cheap way
// to burn CPU.
const DefaultMaxPasswordBytes = 1024

const (
	algorithmID = "argon2id"

	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPassBytes          = 10
)

var (
	errHashFormat  = errors.New("malformed PHC hash")
	errHashVersion = errors.New("unsupported argon2 version")
	errHashParams  = errors.New("invalid argon2 parameters")
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MaxPasswordBytes bounds plaintext input to Hash and Verify. Zero selects
	// DefaultMaxPasswordBytes.
	MaxPasswordBytes int
}

// Argon2 defines a public type used by authcore APIs.
//
// Argon2 instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Argon2 struct {
	cfg      Config
	maxBytes int
}

// NewArgon2 describes the newargon2 operation and its observable behavior.
//
// NewArgon2 may return an error when input validation, dependency calls, or security checks fail.
// NewArgon2 does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewArgon2(cfg Config) (*Argon2, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("password memory must be >= 8192 KB")
	case cfg.Time < minTimeCost:
		return nil, errors.New("password time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return nil, errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("password salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("password key length must be >= 16")
	case cfg.MaxPasswordBytes < 0:
		return nil, errors.New("password max length must be >= 0")
	}

	maxBytes := cfg.MaxPasswordBytes
	if maxBytes == 0 {
		maxBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{cfg: cfg, maxBytes: maxBytes}, nil
}

// Hash describes the hash operation and its observable behavior.
//
// Hash may return an error when input validation, dependency calls, or security checks fail.
// Hash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *Argon2) Hash(password string) (string, error) {
	if err := a.checkLength(password); err != nil {
		return "", err
	}

	salt := make([]byte, a.cfg.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, a.cfg.Time, a.cfg.Memory, a.cfg.Parallelism, a.cfg.KeyLength)

	var sb strings.Builder
	fmt.Fprintf(&sb, "$%s$v=%d$m=%d,t=%d,p=%d$", algorithmID, argon2.Version, a.cfg.Memory, a.cfg.Time, a.cfg.Parallelism)
	sb.WriteString(base64.StdEncoding.EncodeToString(salt))
	sb.WriteByte('$')
	sb.WriteString(base64.StdEncoding.EncodeToString(key))
	return sb.String(), nil
}

// Verify describes the verify operation and its observable behavior.
//
// Verify may return an error when input validation, dependency calls, or security checks fail.
// Verify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	if err := a.checkLength(password); err != nil {
		return false, err
	}

	rec, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), rec.salt, rec.time, rec.memory, rec.parallelism, uint32(len(rec.key)))
	return subtle.ConstantTimeCompare(computed, rec.key) == 1, nil
}

// NeedsUpgrade describes the needsupgrade operation and its observable behavior.
//
// NeedsUpgrade may return an error when input validation, dependency calls, or security checks fail.
// NeedsUpgrade does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	rec, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}

	weaker := a.cfg.Memory > rec.memory ||
		a.cfg.Time > rec.time ||
		a.cfg.Parallelism > rec.parallelism ||
		a.cfg.KeyLength != uint32(len(rec.key))
	return weaker, nil
}

func (a *Argon2) checkLength(password string) error {
	// Raw string bytes exactly as provided, no Unicode normalization.
	if len(password) < minPassBytes {
		return fmt.Errorf("password must be at least %d bytes", minPassBytes)
	}
	if len(password) > a.maxBytes {
		return fmt.Errorf("password must be at most %d bytes", a.maxBytes)
	}
	return nil
}

type phcRecord struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func decodePHC(encoded string) (phcRecord, error) {
	var rec phcRecord

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return rec, errHashFormat
	}
	if parts[1] != algorithmID {
		return rec, errHashFormat
	}

	version, ok := strings.CutPrefix(parts[2], "v=")
	if !ok {
		return rec, errHashFormat
	}
	if v, err := strconv.Atoi(version); err != nil || v != argon2.Version {
		return rec, errHashVersion
	}

	if err := rec.parseCostParams(parts[3]); err != nil {
		return rec, err
	}

	salt, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return rec, errHashFormat
	}
	key, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return rec, errHashFormat
	}

	rec.salt = salt
	rec.key = key
	return rec, nil
}

// parseCostParams decodes the "m=...,t=...,p=..." segment. All three keys are
// required and must meet the package floors.
func (rec *phcRecord) parseCostParams(segment string) error {
	pairs := strings.Split(segment, ",")
	if len(pairs) != 3 {
		return errHashParams
	}
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return errHashParams
		}
		switch name {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < minMemoryKB {
				return errHashParams
			}
			rec.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < minTimeCost {
				return errHashParams
			}
			rec.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || uint8(v) < minParallelism {
				return errHashParams
			}
			rec.parallelism = uint8(v)
		default:
			return errHashParams
		}
	}
	if rec.memory < minMemoryKB || rec.time < minTimeCost || rec.parallelism < minParallelism {
		return errHashParams
	}
	return nil
}
