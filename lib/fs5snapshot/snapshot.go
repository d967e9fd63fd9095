// Copyright 2026 The FS5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs5snapshot encodes and decodes DirV1 values to and from
// the bytes that actually land in the blob store: CBOR, optionally
// zstd-compressed, optionally XChaCha20-Poly1305-encrypted, hashed
// with BLAKE3. The content hash is always taken over the final bytes
// — whatever was actually written — never over the plaintext CBOR.
package fs5snapshot

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/fs5kit/fs5/lib/fs5codec"
	"github.com/fs5kit/fs5/lib/fs5crypto"
	"github.com/fs5kit/fs5/lib/fs5dir"
	"github.com/fs5kit/fs5/lib/fs5err"
	"github.com/fs5kit/fs5/lib/fs5hash"
	"github.com/fs5kit/fs5/lib/fs5secret"
)

// wrapTag is the one-byte prefix written in front of the plain or
// zstd-compressed CBOR before any encryption, identifying whether zstd
// compression was applied; on an encrypted blob it sits inside the
// ciphertext. It lets Decode auto-detect without an out-of-band hint.
type wrapTag byte

const (
	wrapPlain wrapTag = 0
	wrapZstd  wrapTag = 1
)

// zstdEncoder and zstdDecoder are reused across calls; both are safe
// for concurrent use per the klauspost/compress documentation.
var zstdEncoder *zstd.Encoder
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("fs5snapshot: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("fs5snapshot: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode serializes snapshot to CBOR, optionally compresses it with
// zstd when that shrinks the result, optionally encrypts it under
// key, and returns the final bytes along with their BLAKE3 hash —
// exactly what a directory actor writes to the blob store and
// installs into its parent's DirRef.
func Encode(snapshot fs5dir.DirV1, key *fs5secret.Buffer) ([]byte, fs5hash.Hash, error) {
	plain, err := fs5codec.Marshal(snapshot)
	if err != nil {
		return nil, fs5hash.Hash{}, fs5err.Wrap("fs5snapshot.Encode", fs5err.BadFormat, err)
	}

	tag := wrapPlain
	payload := plain
	if compressed := zstdEncoder.EncodeAll(plain, nil); len(compressed) < len(plain) {
		tag = wrapZstd
		payload = compressed
	}

	wrapped := make([]byte, 1+len(payload))
	wrapped[0] = byte(tag)
	copy(wrapped[1:], payload)

	final := wrapped
	if key != nil {
		sealed, err := fs5crypto.Seal(wrapped, key)
		if err != nil {
			return nil, fs5hash.Hash{}, fmt.Errorf("encrypting snapshot: %w", err)
		}
		final = sealed
	}

	return final, fs5hash.Of(final), nil
}

// Decode reverses Encode: optionally decrypts under key, decompresses
// if the wrap tag says zstd was used, and CBOR-decodes the result.
// Returns a *fs5err.Error with Kind BadCipher if decryption fails, or
// BadFormat if the CBOR is invalid. Callers are responsible for
// recognizing an encrypted DirRef with no available key (MissingKey)
// before calling Decode — this function always trusts its key
// argument's presence or absence.
func Decode(blob []byte, key *fs5secret.Buffer) (fs5dir.DirV1, error) {
	wrapped := blob
	if key != nil {
		opened, err := fs5crypto.Open(blob, key)
		if err != nil {
			return fs5dir.DirV1{}, err
		}
		wrapped = opened
	}

	if len(wrapped) < 1 {
		return fs5dir.DirV1{}, fs5err.New("fs5snapshot.Decode", fs5err.BadFormat)
	}

	tag := wrapTag(wrapped[0])
	payload := wrapped[1:]

	var plain []byte
	switch tag {
	case wrapPlain:
		plain = payload
	case wrapZstd:
		decoded, err := zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return fs5dir.DirV1{}, fs5err.Wrap("fs5snapshot.Decode", fs5err.BadFormat, err)
		}
		plain = decoded
	default:
		return fs5dir.DirV1{}, fs5err.New("fs5snapshot.Decode", fs5err.BadFormat)
	}

	var snapshot fs5dir.DirV1
	if err := fs5codec.Unmarshal(plain, &snapshot); err != nil {
		return fs5dir.DirV1{}, fs5err.Wrap("fs5snapshot.Decode", fs5err.BadFormat, err)
	}
	if !snapshot.ValidMagic() {
		return fs5dir.DirV1{}, fs5err.New("fs5snapshot.Decode", fs5err.BadFormat)
	}

	return snapshot, nil
}

// EncodeRef CBOR-encodes a DirRef for transport as a registry
// payload. Unlike a directory snapshot, a DirRef is never compressed
// or encrypted on its own — it is already a small, content-addressed
// pointer, and the registry channel carrying it is itself signed.
func EncodeRef(ref fs5dir.DirRef) ([]byte, error) {
	data, err := fs5codec.Marshal(ref)
	if err != nil {
		return nil, fs5err.Wrap("fs5snapshot.EncodeRef", fs5err.BadFormat, err)
	}
	return data, nil
}

// DecodeRef reverses EncodeRef.
func DecodeRef(data []byte, ref *fs5dir.DirRef) error {
	if err := fs5codec.Unmarshal(data, ref); err != nil {
		return fs5err.Wrap("fs5snapshot.DecodeRef", fs5err.BadFormat, err)
	}
	return nil
}

// EncodedSize returns the size Encode would produce for snapshot
// without actually encrypting it, used by the directory actor to
// decide whether a mutation has pushed the directory over the
// auto-sharding threshold. Compression is applied (it changes what
// actually lands on disk) but encryption overhead is approximated by
// its fixed byte cost, since the nonce/tag size does not depend on
// content.
func EncodedSize(snapshot fs5dir.DirV1, encrypted bool) (int, error) {
	plain, err := fs5codec.Marshal(snapshot)
	if err != nil {
		return 0, fs5err.Wrap("fs5snapshot.EncodedSize", fs5err.BadFormat, err)
	}

	size := len(plain)
	if compressed := zstdEncoder.EncodeAll(plain, nil); len(compressed) < size {
		size = len(compressed)
	}
	size++ // wrap tag byte

	if encrypted {
		size += fs5crypto.Overhead
	}
	return size, nil
}
