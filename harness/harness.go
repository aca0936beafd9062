package harness

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	mrand "math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// ErrMismatch is returned when the decrypted output differs from the
// original input.
var ErrMismatch = errors.New("decrypted output differs from input")

const (
	// KeyLength is the number of characters in a generated key.
	KeyLength = 8

	keyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	encryptedName = "encrypted"
	decryptedName = "decrypted"

	compareChunk = 1 << 16
)

// Runner invokes the executable under test once to encrypt and once to
// decrypt, and verifies the round trip.
type Runner struct {
	BinaryPath string
	// WorkDir holds the transient encrypted and decrypted files.
	WorkDir string
	// Timeout bounds each invocation. Zero means no limit.
	Timeout time.Duration
	Logger  *slog.Logger

	rng *mrand.Rand
}

// NewRunner creates a Runner for the executable at binaryPath. Keys are
// drawn from rng.
func NewRunner(
	binaryPath, workDir string,
	rng *mrand.Rand,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		BinaryPath: binaryPath,
		WorkDir:    workDir,
		Logger:     logger.With(slog.String("component", "runner")),
		rng:        rng,
	}
}

// GenerateKey returns a fresh random key of KeyLength letters.
func (r *Runner) GenerateKey() string {
	key := make([]byte, KeyLength)
	for i := range key {
		key[i] = keyAlphabet[r.rng.Intn(len(keyAlphabet))]
	}

	return string(key)
}

// EncryptedPath returns the path of the transient encrypted file.
func (r *Runner) EncryptedPath() string {
	return filepath.Join(r.WorkDir, encryptedName)
}

// DecryptedPath returns the path of the transient decrypted file.
func (r *Runner) DecryptedPath() string {
	return filepath.Join(r.WorkDir, decryptedName)
}

// Run performs one round trip on inputPath and returns the wall-clock time
// of the encryption call alone. On success the transient files are removed;
// on failure they are left for inspection and removed by the next Run.
func (r *Runner) Run(ctx context.Context, inputPath string) (time.Duration, error) {
	if err := r.clean(); err != nil {
		return 0, err
	}

	key := r.GenerateKey()
	encrypted := r.EncryptedPath()
	decrypted := r.DecryptedPath()

	start := time.Now()

	if err := r.invoke(ctx, "-e", inputPath, key, encrypted); err != nil {
		return 0, fmt.Errorf("encrypt %s: %w", inputPath, err)
	}

	elapsed := time.Since(start)

	if err := r.invoke(ctx, "-d", encrypted, key, decrypted); err != nil {
		return 0, fmt.Errorf("decrypt %s: %w", encrypted, err)
	}

	offset, equal, err := compareFiles(inputPath, decrypted)
	if err != nil {
		return 0, fmt.Errorf("compare %s with %s: %w", inputPath, decrypted, err)
	}

	if !equal {
		return 0, fmt.Errorf("%w: %s and %s differ at byte %d",
			ErrMismatch, inputPath, decrypted, offset)
	}

	r.Logger.DebugContext(ctx, "round trip verified",
		slog.String("input", inputPath),
		slog.Duration("encrypt_time", elapsed),
	)

	if err := r.clean(); err != nil {
		return 0, err
	}

	return elapsed, nil
}

func (r *Runner) invoke(ctx context.Context, mode, in, key, out string) error {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.BinaryPath, mode, in, "-k", key, out)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s failed: %w\nstderr: %s",
			r.BinaryPath, mode, err, stderr.String())
	}

	if stdout.Len() > 0 {
		r.Logger.DebugContext(ctx, "executable output",
			slog.String("mode", mode),
			slog.String("stdout", stdout.String()),
		)
	}

	return nil
}

func (r *Runner) clean() error {
	for _, p := range []string{r.EncryptedPath(), r.DecryptedPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale %s: %w", p, err)
		}
	}

	return nil
}

// compareFiles reports whether a and b have identical contents. When they
// differ, offset is the first differing byte (or the shorter length).
func compareFiles(a, b string) (offset int64, equal bool, err error) {
	fa, err := os.Open(a)
	if err != nil {
		return 0, false, err
	}
	defer fa.Close()

	fb, err := os.Open(b)
	if err != nil {
		return 0, false, err
	}
	defer fb.Close()

	ra := bufio.NewReaderSize(fa, compareChunk)
	rb := bufio.NewReaderSize(fb, compareChunk)
	bufA := make([]byte, compareChunk)
	bufB := make([]byte, compareChunk)

	for {
		na, errA := io.ReadFull(ra, bufA)
		nb, errB := io.ReadFull(rb, bufB)

		if errA != nil && !isEOF(errA) {
			return offset, false, errA
		}

		if errB != nil && !isEOF(errB) {
			return offset, false, errB
		}

		n := min(na, nb)
		if i := firstDiff(bufA[:n], bufB[:n]); i >= 0 {
			return offset + int64(i), false, nil
		}

		if na != nb {
			return offset + int64(n), false, nil
		}

		offset += int64(n)

		if isEOF(errA) {
			return offset, true, nil
		}
	}
}

func firstDiff(a, b []byte) int {
	if bytes.Equal(a, b) {
		return -1
	}

	for i := range a {
		if a[i] != b[i] {
			return i
		}
	}

	return -1
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
