package ws

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

const (
	rsaKeyBits    = 2048
	aesKeyBytes   = 32 // AES-256
	gcmNonceBytes = 12
	challengeSize = 32
)

// GenerateKeyPair creates an RSA-2048 keypair, used by the client to
// receive the server-generated AES key during the handshake.
func GenerateKeyPair() (*rsa.PrivateKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("%w: generate keypair: %v", ErrCrypto, err)
	}
	return priv, nil
}

// GenerateSharedSecret produces a fresh 32-byte AES-256 key.
func GenerateSharedSecret() ([]byte, error) {
	key := make([]byte, aesKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: generate shared secret: %v", ErrCrypto, err)
	}
	return key, nil
}

// GenerateChallenge produces 32 random bytes for proof-of-possession.
func GenerateChallenge() ([]byte, error) {
	challenge := make([]byte, challengeSize)
	if _, err := rand.Read(challenge); err != nil {
		return nil, fmt.Errorf("%w: generate challenge: %v", ErrCrypto, err)
	}
	return challenge, nil
}

// EncodePublicKeyBase64 encodes an RSA public key as X.509
// SubjectPublicKeyInfo, then base64.
func EncodePublicKeyBase64(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("%w: encode public key: %v", ErrCrypto, err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// DecodePublicKeyBase64 decodes a base64 X.509 SubjectPublicKeyInfo blob
// into an RSA public key.
func DecodePublicKeyBase64(encoded string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: decode public key: %v", ErrCrypto, err)
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parse public key: %v", ErrCrypto, err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: public key is not RSA", ErrCrypto)
	}
	return rsaPub, nil
}

// WrapSharedSecret encrypts secret under pub using RSA-OAEP-SHA256 and
// returns the base64-encoded ciphertext.
func WrapSharedSecret(secret []byte, pub *rsa.PublicKey) (string, error) {
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, secret, nil)
	if err != nil {
		return "", fmt.Errorf("%w: wrap shared secret: %v", ErrCrypto, err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// UnwrapSharedSecret decrypts a base64 RSA-OAEP-SHA256 ciphertext under
// priv, returning the raw AES-256 key bytes.
func UnwrapSharedSecret(encoded string, priv *rsa.PrivateKey) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: decode wrapped secret: %v", ErrCrypto, err)
	}
	secret, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: unwrap shared secret: %v", ErrCrypto, err)
	}
	return secret, nil
}

// EncryptGCM seals plaintext under key (AES-256-GCM, 128-bit tag) with a
// fresh 12-byte CSPRNG nonce, returning the ciphertext and the nonce used.
func EncryptGCM(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: new cipher: %v", ErrCrypto, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: new gcm: %v", ErrCrypto, err)
	}
	nonce = make([]byte, gcmNonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("%w: generate nonce: %v", ErrCrypto, err)
	}
	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// DecryptGCM opens ciphertext under key and nonce (AES-256-GCM,
// 128-bit tag).
func DecryptGCM(ciphertext, nonce, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: new cipher: %v", ErrCrypto, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: new gcm: %v", ErrCrypto, err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrCrypto, err)
	}
	return plaintext, nil
}

// HMACSHA256 computes the keyed HMAC-SHA256 of data under key.
func HMACSHA256(data, key []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// ConstantTimeEqualBase64 compares two base64 strings for equality in
// time independent of any early mismatch, decoding first so that
// differing encodings of equal bytes still compare equal.
func ConstantTimeEqualBase64(a, b string) bool {
	da, errA := base64.StdEncoding.DecodeString(a)
	db, errB := base64.StdEncoding.DecodeString(b)
	if errA != nil || errB != nil {
		return false
	}
	if len(da) != len(db) {
		return false
	}
	return subtle.ConstantTimeCompare(da, db) == 1
}
