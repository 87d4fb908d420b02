// Package cryptox issues and verifies the opaque bearer tokens used by login
// cookies and email links. Only argon2 hashes of tokens are ever stored.
package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/members/internal/common"
	"golang.org/x/crypto/argon2"
)

// TokenKind selects the hashing cost of a token.
type TokenKind int

const (
	// Quick tokens back cookie sessions and are verified on every request,
	// so they use a cheap argon2 configuration.
	Quick TokenKind = iota
	// Strong tokens back email links and use the full-cost configuration.
	Strong
)

func (k TokenKind) String() string {
	switch k {
	case Quick:
		return "quick"
	case Strong:
		return "strong"
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

const (
	// TokenBytes is the amount of entropy in a token; the plaintext is hex.
	TokenBytes = 64
	saltBytes  = 32
	keyBytes   = 32
)

type params struct {
	memory  uint32 // KiB
	time    uint32
	threads uint8
}

var kindParams = map[TokenKind]params{
	Quick:  {memory: 128, time: 1, threads: 1},
	Strong: {memory: 64 * 1024, time: 1, threads: 4},
}

// GenerateToken returns a fresh random plaintext token together with the
// encoded argon2id hash that should be persisted in its place.
func GenerateToken(kind TokenKind) (plaintext string, hash string, err error) {
	p, ok := kindParams[kind]
	if !ok {
		return "", "", fmt.Errorf("%w: unknown token kind %v", common.ErrCryptoFailure, kind)
	}

	plaintext, err = common.MakeRandHexString(TokenBytes)
	if err != nil {
		return "", "", err
	}

	salt, err := common.GenerateRandByteArray(saltBytes)
	if err != nil {
		return "", "", err
	}

	return plaintext, encodeHash(p, salt, deriveKey([]byte(plaintext), salt, p)), nil
}

// VerifyToken reports whether plaintext matches the encoded hash. A malformed
// hash never verifies.
func VerifyToken(plaintext, hash string) bool {
	p, salt, key, err := decodeHash(hash)
	if err != nil {
		return false
	}
	candidate := deriveKey([]byte(plaintext), salt, p)
	defer common.WipeByteArray(candidate)
	return subtle.ConstantTimeCompare(candidate, key) == 1
}

func deriveKey(secret, salt []byte, p params) []byte {
	return argon2.IDKey(secret, salt, p.time, p.memory, p.threads, keyBytes)
}

// encodeHash renders the PHC string form:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
func encodeHash(p params, salt, key []byte) string {
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads, b64.EncodeToString(salt), b64.EncodeToString(key))
}

func decodeHash(hash string) (params, []byte, []byte, error) {
	var p params

	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, common.ErrInvalidToken
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, common.ErrInvalidToken
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, nil, nil, common.ErrInvalidToken
	}
	if p.memory == 0 || p.time == 0 || p.threads == 0 {
		return p, nil, nil, common.ErrInvalidToken
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, common.ErrInvalidToken
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, common.ErrInvalidToken
	}

	return p, salt, key, nil
}
