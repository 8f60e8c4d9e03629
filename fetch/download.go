package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrChecksumMismatch is returned when a downloaded file does not match its
// expected digest.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ChecksumError wraps ErrChecksumMismatch with the digests involved.
type ChecksumError struct {
	Path string
	Want string
	Got  string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: want %s, got %s", e.Path, e.Want, e.Got)
}

func (e *ChecksumError) Unwrap() error {
	return ErrChecksumMismatch
}

// DownloadFile streams an artifact to dest, verifying its sha256 digest
// while copying. A file already present at dest with a matching digest is
// left alone. Writes are atomic: the artifact lands in a temporary file that
// is renamed into place only after the digest checks out. An empty digest
// disables verification, for channels that only publish md5 sums.
func DownloadFile(ctx context.Context, f FetcherInterface, url, dest, sha256hex string) error {
	if sha256hex != "" {
		if digest, err := fileSHA256(dest); err == nil && digest == sha256hex {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
	}

	artifact, err := f.Fetch(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = artifact.Body.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	hasher := sha256.New()
	if _, err := io.Copy(tmp, io.TeeReader(artifact.Body, hasher)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}

	if sha256hex != "" {
		if digest := hex.EncodeToString(hasher.Sum(nil)); digest != sha256hex {
			return &ChecksumError{Path: dest, Want: sha256hex, Got: digest}
		}
	}
	return os.Rename(tmp.Name(), dest)
}

func fileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
