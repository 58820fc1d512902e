// Package duplicate implements the Duplicate Detector: it partitions a set
// of MediaFile records into equivalence classes by size and content hash.
package duplicate

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// sampledHashThreshold is the size at or above which a file is fingerprinted with
// the sampled hash instead of a full read.
const sampledHashThreshold = 1024 * 1024 // 1 MiB

const sampleWindow = 4 * 1024 // 4 KiB

// contentHash computes the per-file fingerprint used for duplicate
// grouping: full SHA-256 for files under 1 MiB, and a sampled SHA-256
// (first 4 KiB ‖ middle 4 KiB ‖ last 4 KiB ‖ size-as-8-byte-LE) for files
// at or above 1 MiB. Two files differing only outside the three windows
// above 1 MiB are treated as identical; this is an accepted tradeoff, not a
// bug — see the design notes on content-similarity vs bit-identity.
func contentHash(path string, size int64) (string, error) {
	if size < sampledHashThreshold {
		return fullHash(path)
	}
	return sampledHash(path, size)
}

func fullHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func sampledHash(path string, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	h := sha256.New()

	first := make([]byte, sampleWindow)
	if _, err := io.ReadFull(f, first); err != nil && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("read first window: %w", err)
	}
	h.Write(first)

	middleOffset := size / 2
	if _, err := f.Seek(middleOffset, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek middle window: %w", err)
	}
	middle := make([]byte, sampleWindow)
	if _, err := io.ReadFull(f, middle); err != nil && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("read middle window: %w", err)
	}
	h.Write(middle)

	lastOffset := size - sampleWindow
	if lastOffset < 0 {
		lastOffset = 0
	}
	if _, err := f.Seek(lastOffset, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek last window: %w", err)
	}
	last := make([]byte, sampleWindow)
	if _, err := io.ReadFull(f, last); err != nil && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("read last window: %w", err)
	}
	h.Write(last)

	var sizeSuffix [8]byte
	binary.LittleEndian.PutUint64(sizeSuffix[:], uint64(size))
	h.Write(sizeSuffix[:])

	return hex.EncodeToString(h.Sum(nil)), nil
}
