package legacy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// CiphertextExt marks files produced by the cipher tool.
	CiphertextExt = ".age"

	dateLayout     = "2006-01-02"
	defaultExt     = ".bin"
	sensitiveTag   = "[SENSITIVE] "
	maxNameAttempt = 10000
)

// Gateway runs the cipher tool with collision-free output naming and never
// leaves partial output behind.
type Gateway struct {
	Cipher Cipher
	Log    *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func (g *Gateway) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Gateway) log() *zap.Logger {
	if g.Log != nil {
		return g.Log
	}
	return zap.NewNop()
}

// DecryptedName is the output name for ciphertextPath on the given date,
// with the collision counter n (0 for none).
func DecryptedName(ciphertextPath string, date time.Time, n int) string {
	base, ext := splitExt(strings.TrimSuffix(filepath.Base(ciphertextPath), CiphertextExt))
	if ext == "" {
		ext = defaultExt
	}
	return fmt.Sprintf("%s%s - Decrypted %s%s%s", sensitiveTag, base, date.Format(dateLayout), counter(n), ext)
}

// EncryptedName is the output name for sourcePath on the given date, with
// the collision counter n (0 for none).
func EncryptedName(sourcePath string, date time.Time, n int) string {
	stem, ext := splitExt(filepath.Base(sourcePath))
	return fmt.Sprintf("%s - Encrypted %s%s%s%s", stem, date.Format(dateLayout), counter(n), ext, CiphertextExt)
}

// splitExt splits name into stem and extension. A dot file such as
// ".bashrc" is all stem.
func splitExt(name string) (stem, ext string) {
	ext = filepath.Ext(name)
	stem = strings.TrimSuffix(name, ext)
	if strings.Trim(stem, ".") == "" {
		return name, ""
	}
	return stem, ext
}

func counter(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf(" (%d)", n)
}

// reserve creates the first free name in dir produced by name and returns
// its path. The empty placeholder is what the cipher tool later writes over.
func reserve(dir string, name func(n int) string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	for n := 0; n < maxNameAttempt; n++ {
		path := filepath.Join(dir, name(n))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create output file %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to create output file %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free output name in %s", dir)
}

// CheckEncryptable rejects sources that are not regular files or that are
// already ciphertext.
func CheckEncryptable(sourcePath string) error {
	if strings.EqualFold(filepath.Ext(sourcePath), CiphertextExt) {
		return Errorf(AlreadyEncrypted, "cannot encrypt a file that already has a %s extension", CiphertextExt)
	}
	info, err := os.Stat(sourcePath)
	if err != nil {
		return &Error{Code: SourceInvalid, Err: err}
	}
	if !info.Mode().IsRegular() {
		return Errorf(SourceInvalid, "%s is not a regular file", filepath.Base(sourcePath))
	}
	return nil
}

// Encrypt encrypts sourcePath to recipient, writing into outDir. It returns
// the path of the ciphertext.
func (g *Gateway) Encrypt(ctx context.Context, sourcePath string, recipient Recipient, outDir string) (string, error) {
	if err := CheckEncryptable(sourcePath); err != nil {
		return "", err
	}
	date := g.now()
	out, err := reserve(outDir, func(n int) string { return EncryptedName(sourcePath, date, n) })
	if err != nil {
		return "", err
	}

	if err := g.Cipher.Encrypt(ctx, recipient, sourcePath, out); err != nil {
		g.discard(out)
		return "", asCode(err, CipherToolError)
	}
	g.log().Info("encrypted file", zap.String("source", filepath.Base(sourcePath)), zap.String("output", out))
	return out, nil
}

// Decrypt opens ciphertextPath with identity, writing into outDir. It
// returns the path of the plaintext.
func (g *Gateway) Decrypt(ctx context.Context, ciphertextPath string, identity CombinedIdentity, outDir string) (string, error) {
	date := g.now()
	out, err := reserve(outDir, func(n int) string { return DecryptedName(ciphertextPath, date, n) })
	if err != nil {
		return "", err
	}

	if err := g.Cipher.Decrypt(ctx, identity, ciphertextPath, out); err != nil {
		g.discard(out)
		return "", asCode(err, CipherToolError)
	}
	g.log().Info("decrypted file", zap.String("ciphertext", filepath.Base(ciphertextPath)), zap.String("output", out))
	return out, nil
}

func (g *Gateway) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		g.log().Warn("failed to remove partial output", zap.String("path", path), zap.Error(err))
	}
}

// LocateCiphertext finds the single ciphertext in dir.
func LocateCiphertext(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+CiphertextExt))
	if err != nil {
		return "", fmt.Errorf("failed to search %s: %w", dir, err)
	}
	switch len(matches) {
	case 0:
		return "", Errorf(CiphertextMissing, "no encrypted %s file found in %s", CiphertextExt, dir)
	case 1:
		return matches[0], nil
	default:
		return "", Errorf(CiphertextAmbiguous, "too many encrypted %s files (%d) found in %s", CiphertextExt, len(matches), dir)
	}
}
