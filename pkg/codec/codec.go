// Package codec compresses note bodies for storage.
//
// Payloads are zstd frames encoded as standard base64 so they survive any
// string-typed document field. Notes written before compression existed carry
// plain text and no compressed flag; Decode passes them through untouched.
package codec

import (
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/aretw0/synote/pkg/core"
)

// Zstd implements core.Codec.
type Zstd struct {
	once sync.Once
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	err  error
}

// NewZstd returns a ready codec. Encoders are created lazily and shared.
func NewZstd() *Zstd {
	return &Zstd{}
}

func (z *Zstd) init() error {
	z.once.Do(func() {
		z.enc, z.err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithZeroFrames(true), // empty notes still get a decodable frame
		)
		if z.err != nil {
			return
		}
		z.dec, z.err = zstd.NewReader(nil)
	})
	return z.err
}

// Compress encodes text into an opaque payload.
func (z *Zstd) Compress(text string) (string, error) {
	if err := z.init(); err != nil {
		return "", fmt.Errorf("codec init: %w", err)
	}
	frame := z.enc.EncodeAll([]byte(text), nil)
	return base64.StdEncoding.EncodeToString(frame), nil
}

// Decompress decodes a payload produced by Compress.
// Corrupt input yields a *core.DecodeError.
func (z *Zstd) Decompress(payload string) (string, error) {
	if err := z.init(); err != nil {
		return "", fmt.Errorf("codec init: %w", err)
	}
	frame, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", &core.DecodeError{Err: err}
	}
	text, err := z.dec.DecodeAll(frame, nil)
	if err != nil {
		return "", &core.DecodeError{Err: err}
	}
	return string(text), nil
}

// Encode returns the stored form of text. A nil codec stores plain text.
func Encode(c core.Codec, text string) (content string, compressed bool, err error) {
	if c == nil {
		return text, false, nil
	}
	payload, err := c.Compress(text)
	if err != nil {
		return "", false, err
	}
	return payload, true, nil
}

// Decode returns the plain text of n. Uncompressed notes pass through.
func Decode(c core.Codec, n core.Note) (string, error) {
	if !n.Compressed {
		return n.Content, nil
	}
	if c == nil {
		return "", &core.DecodeError{Err: fmt.Errorf("note %s is compressed but no codec is configured", n.ID)}
	}
	text, err := c.Decompress(n.Content)
	if err != nil {
		return "", err
	}
	return text, nil
}

var _ core.Codec = (*Zstd)(nil)
