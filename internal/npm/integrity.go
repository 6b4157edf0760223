package npm

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/git-pkgs/regcopy/internal/core"
)

const defaultMaxTarballSize = 512 << 20

var (
	// ErrIntegrityMismatch is returned when a downloaded archive does not
	// match the checksum the source registry advertised for it.
	ErrIntegrityMismatch = errors.New("tarball integrity mismatch")

	// ErrTarballTooLarge is returned when an archive exceeds the size limit.
	ErrTarballTooLarge = errors.New("tarball exceeds size limit")
)

// archive is a fully read tarball together with its digests.
type archive struct {
	data   []byte
	sums   map[string][]byte // algorithm -> raw digest
	shasum string
	sha512 string
}

// readArchive drains tb, hashing as it reads, and checks the result against
// the checksums the source advertised.
func readArchive(tb *core.Tarball, limit int64) (*archive, error) {
	hashes := map[string]hash.Hash{
		"sha1":   sha1.New(),
		"sha256": sha256.New(),
		"sha384": sha512.New384(),
		"sha512": sha512.New(),
	}
	writers := make([]io.Writer, 0, len(hashes)+1)
	for _, h := range hashes {
		writers = append(writers, h)
	}
	var buf bytes.Buffer
	if tb.Size > 0 && tb.Size <= limit {
		buf.Grow(int(tb.Size))
	}
	writers = append(writers, &buf)

	n, err := io.Copy(io.MultiWriter(writers...), io.LimitReader(tb, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading tarball %s: %w", tb.URL, err)
	}
	if n > limit {
		return nil, fmt.Errorf("%s: %w (%d bytes)", tb.URL, ErrTarballTooLarge, limit)
	}

	a := &archive{data: buf.Bytes(), sums: make(map[string][]byte, len(hashes))}
	for algo, h := range hashes {
		a.sums[algo] = h.Sum(nil)
	}
	a.shasum = hex.EncodeToString(a.sums["sha1"])
	a.sha512 = "sha512-" + base64.StdEncoding.EncodeToString(a.sums["sha512"])

	if err := a.verify(tb.Expected); err != nil {
		return nil, fmt.Errorf("%s: %w", tb.URL, err)
	}
	return a, nil
}

// verify compares the archive against expected. SRI integrity strings take
// precedence over the legacy shasum. Nothing advertised means nothing to
// check.
func (a *archive) verify(expected core.Dist) error {
	if expected.Integrity != "" {
		checked := false
		for _, entry := range strings.Fields(expected.Integrity) {
			algo, digest, ok := strings.Cut(entry, "-")
			if !ok {
				continue
			}
			sum, known := a.sums[algo]
			if !known {
				continue
			}
			checked = true
			// Options after "?" are allowed by the SRI grammar.
			digest, _, _ = strings.Cut(digest, "?")
			if base64.StdEncoding.EncodeToString(sum) == digest {
				return nil
			}
		}
		if checked {
			return fmt.Errorf("%w: expected %s", ErrIntegrityMismatch, expected.Integrity)
		}
	}
	if expected.Shasum != "" && !strings.EqualFold(expected.Shasum, a.shasum) {
		return fmt.Errorf("%w: expected shasum %s, got %s", ErrIntegrityMismatch, expected.Shasum, a.shasum)
	}
	return nil
}
