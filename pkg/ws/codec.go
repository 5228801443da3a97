package ws

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// NoCompression disables the compression envelope entirely.
const NoCompression = -1

type typedEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type compressedEnvelope struct {
	Compressed bool   `json:"compressed"`
	Payload    string `json:"payload"`
}

type encryptedEnvelope struct {
	Encrypted bool   `json:"encrypted"`
	Payload   string `json:"payload"`
	IV        string `json:"iv"`
}

// flagProbe is used to inspect the top-level flags of an incoming
// envelope before deciding how to unwrap it.
type flagProbe struct {
	Encrypted  bool `json:"encrypted"`
	Compressed bool `json:"compressed"`
}

// Encode produces the single wire frame for msg.
//
// If key is non-nil, the typed envelope is AES-256-GCM encrypted and
// returned as an encrypted envelope (encryption always wins once a key
// exists). Otherwise, if compressionThreshold is not NoCompression and the
// typed envelope's JSON exceeds it, the payload is gzipped and base64
// encoded; if the compressed form is not actually shorter, the typed
// envelope is emitted uncompressed instead. Exactly one wrapping layer is
// ever produced.
func Encode(msg Packet, key []byte, compressionThreshold int) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("%w: marshal packet: %v", ErrCodec, err)
	}

	typed := typedEnvelope{Type: msg.PacketTag(), Data: data}
	typedJSON, err := json.Marshal(typed)
	if err != nil {
		return "", fmt.Errorf("%w: marshal envelope: %v", ErrCodec, err)
	}

	if key != nil {
		ciphertext, nonce, err := EncryptGCM(typedJSON, key)
		if err != nil {
			return "", err
		}
		env := encryptedEnvelope{
			Encrypted: true,
			Payload:   base64.StdEncoding.EncodeToString(ciphertext),
			IV:        base64.StdEncoding.EncodeToString(nonce),
		}
		out, err := json.Marshal(env)
		if err != nil {
			return "", fmt.Errorf("%w: marshal encrypted envelope: %v", ErrCodec, err)
		}
		return string(out), nil
	}

	if compressionThreshold != NoCompression && len(typedJSON) > compressionThreshold {
		compressed, err := gzipCompress(typedJSON)
		if err == nil && len(compressed) < len(typedJSON) {
			env := compressedEnvelope{
				Compressed: true,
				Payload:    base64.StdEncoding.EncodeToString(compressed),
			}
			out, err := json.Marshal(env)
			if err != nil {
				return "", fmt.Errorf("%w: marshal compressed envelope: %v", ErrCodec, err)
			}
			return string(out), nil
		}
		// Compression failed or didn't help; fall through to uncompressed.
	}

	return string(typedJSON), nil
}

// Decode unwraps a single wire frame, recursing through compression and
// encryption layers as needed, and materializes the registered Go type
// for the resulting typed envelope.
func Decode(data string, key []byte) (Packet, error) {
	var probe flagProbe
	if err := json.Unmarshal([]byte(data), &probe); err != nil {
		return nil, fmt.Errorf("%w: unmarshal envelope: %v", ErrCodec, err)
	}

	switch {
	case probe.Encrypted:
		if key == nil {
			return nil, fmt.Errorf("%w: received encrypted frame", ErrNoSharedKey)
		}
		var env encryptedEnvelope
		if err := json.Unmarshal([]byte(data), &env); err != nil {
			return nil, fmt.Errorf("%w: unmarshal encrypted envelope: %v", ErrCodec, err)
		}
		ciphertext, err := base64.StdEncoding.DecodeString(env.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: decode ciphertext: %v", ErrCodec, err)
		}
		nonce, err := base64.StdEncoding.DecodeString(env.IV)
		if err != nil {
			return nil, fmt.Errorf("%w: decode iv: %v", ErrCodec, err)
		}
		plaintext, err := DecryptGCM(ciphertext, nonce, key)
		if err != nil {
			return nil, err
		}
		return Decode(string(plaintext), key)

	case probe.Compressed:
		var env compressedEnvelope
		if err := json.Unmarshal([]byte(data), &env); err != nil {
			return nil, fmt.Errorf("%w: unmarshal compressed envelope: %v", ErrCodec, err)
		}
		compressed, err := base64.StdEncoding.DecodeString(env.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: decode compressed payload: %v", ErrCodec, err)
		}
		plain, err := gzipDecompress(compressed)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress: %v", ErrCodec, err)
		}
		return Decode(string(plain), key)

	default:
		var typed typedEnvelope
		if err := json.Unmarshal([]byte(data), &typed); err != nil {
			return nil, fmt.Errorf("%w: unmarshal typed envelope: %v", ErrCodec, err)
		}
		if typed.Type == "" {
			return nil, fmt.Errorf("%w: missing type field", ErrCodec)
		}
		ctor, ok := Resolve(typed.Type)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPacketType, typed.Type)
		}
		msg := ctor()
		if len(typed.Data) > 0 {
			if err := json.Unmarshal(typed.Data, msg); err != nil {
				return nil, fmt.Errorf("%w: unmarshal packet data: %v", ErrCodec, err)
			}
		}
		return msg, nil
	}
}

// frameIsEncrypted reports whether the outermost envelope in a raw wire
// frame carries the encrypted flag, without fully decoding it. Used by
// the handshake dispatch to enforce that authenticated-phase frames are
// never accepted unencrypted.
func frameIsEncrypted(data string) bool {
	var probe flagProbe
	if err := json.Unmarshal([]byte(data), &probe); err != nil {
		return false
	}
	return probe.Encrypted
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
