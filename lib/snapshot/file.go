// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"filippo.io/age"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/p4fs/lib/codec"
	"github.com/bureau-foundation/p4fs/lib/p4"
	"github.com/bureau-foundation/p4fs/lib/sealed"
)

// FormatVersion is the Snapshot schema version written by this
// package. Load rejects other versions.
const FormatVersion = 1

const (
	magic      = "P4FSSNP1"
	headerSize = len(magic) + 1 + 8 + 32

	// maxBodySize bounds the decompressed body so that a corrupt
	// length field cannot force a huge allocation.
	maxBodySize = 4 << 30
)

// digestDomainKey is the BLAKE3 key for snapshot digests: the ASCII
// domain name zero-padded to 32 bytes.
var digestDomainKey = [32]byte{
	'p', '4', 'f', 's', '.', 's', 'n', 'a', 'p', 's', 'h', 'o', 't', 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// ErrCorrupt is returned by Load and Decode when the file is not a
// snapshot or its digest does not match.
var ErrCorrupt = errors.New("snapshot: corrupt file")

// ErrSealed is returned by Load for an age-encrypted file when no
// identity was given.
var ErrSealed = errors.New("snapshot is sealed; an age identity is required")

// Snapshot is the recorded set of depot answers. A key that is present
// with an empty value records an empty answer, which is different from
// a query that was never made.
type Snapshot struct {
	Version int `cbor:"version"`

	// Server is the address of the depot the answers came from.
	Server string `cbor:"server,omitempty"`

	// Recorded is when the snapshot was written.
	Recorded time.Time `cbor:"recorded"`

	// Dirs and Files are keyed by pattern.
	Dirs  map[string][]string        `cbor:"dirs"`
	Files map[string][]p4.FileRecord `cbor:"files"`

	// Filelogs is keyed by filelogKey(path, limit).
	Filelogs map[string][]p4.Revision `cbor:"filelogs"`

	// Prints is keyed by depot path.
	Prints map[string]p4.Content `cbor:"prints"`
}

func newSnapshot() Snapshot {
	return Snapshot{
		Version:  FormatVersion,
		Dirs:     make(map[string][]string),
		Files:    make(map[string][]p4.FileRecord),
		Filelogs: make(map[string][]p4.Revision),
		Prints:   make(map[string]p4.Content),
	}
}

func filelogKey(path string, limit int) string {
	return strconv.Itoa(limit) + " " + path
}

// Encode serializes a snapshot into the file format, compressing the
// body with the requested algorithm.
func Encode(snapshot Snapshot, compression Compression) ([]byte, error) {
	body, err := codec.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}

	used, compressed, err := compress(body, compression)
	if err != nil {
		return nil, fmt.Errorf("compressing snapshot: %w", err)
	}

	var fields [9]byte
	fields[0] = byte(used)
	binary.BigEndian.PutUint64(fields[1:], uint64(len(body)))
	digest := bodyDigest(fields[:], compressed)

	output := make([]byte, 0, headerSize+len(compressed))
	output = append(output, magic...)
	output = append(output, fields[:]...)
	output = append(output, digest[:]...)
	output = append(output, compressed...)
	return output, nil
}

// Decode parses the file format, verifying the digest before the body
// is decompressed.
func Decode(data []byte) (Snapshot, error) {
	if len(data) < headerSize || string(data[:len(magic)]) != magic {
		return Snapshot{}, fmt.Errorf("%w: missing %s header", ErrCorrupt, magic)
	}

	fields := data[len(magic) : len(magic)+9]
	var stored [32]byte
	copy(stored[:], data[len(magic)+9:headerSize])
	compressed := data[headerSize:]

	if digest := bodyDigest(fields, compressed); digest != stored {
		return Snapshot{}, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}

	body, err := decompress(compressed, Compression(fields[0]), binary.BigEndian.Uint64(fields[1:]))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var snapshot Snapshot
	if err := codec.Unmarshal(body, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("%w: decoding body: %v", ErrCorrupt, err)
	}
	if snapshot.Version != FormatVersion {
		return Snapshot{}, fmt.Errorf("snapshot format version %d is not supported (want %d)", snapshot.Version, FormatVersion)
	}
	snapshot.fill()
	return snapshot, nil
}

// fill replaces absent maps so that lookups and recording never hit a
// nil map.
func (s *Snapshot) fill() {
	if s.Dirs == nil {
		s.Dirs = make(map[string][]string)
	}
	if s.Files == nil {
		s.Files = make(map[string][]p4.FileRecord)
	}
	if s.Filelogs == nil {
		s.Filelogs = make(map[string][]p4.Revision)
	}
	if s.Prints == nil {
		s.Prints = make(map[string]p4.Content)
	}
}

func bodyDigest(fields, compressed []byte) [32]byte {
	hasher, err := blake3.NewKeyed(digestDomainKey[:])
	if err != nil {
		panic("snapshot: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(fields)
	hasher.Write(compressed)

	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// writeFile atomically writes an encoded snapshot to path.
func writeFile(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing snapshot data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming snapshot file to %s: %w", path, err)
	}

	success = true
	return nil
}

// Load reads and verifies the snapshot file at path. A sealed file is
// decrypted with any of identities first.
func Load(path string, identities ...age.Identity) (*Replayer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	if sealed.IsSealed(data) {
		if len(identities) == 0 {
			return nil, fmt.Errorf("loading snapshot %s: %w", path, ErrSealed)
		}
		data, err = sealed.Decrypt(data, identities)
		if err != nil {
			return nil, fmt.Errorf("opening sealed snapshot %s: %w", path, err)
		}
	}
	snapshot, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", path, err)
	}
	return NewReplayer(snapshot), nil
}
