package selection

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gofrs/flock"

	"chordseq/internal/fileutil"
	"chordseq/internal/logging"
)

// PromoteOptions tunes the copy of the winning checkpoint.
type PromoteOptions struct {
	Attempts int
	Delay    time.Duration
	// LockDir holds promotion lock files; empty uses the system temp dir.
	LockDir string
	Logger  *slog.Logger
}

// LockPath is the lock file guarding promotions to dst. It lives in lockDir so
// nothing but dst itself is ever written next to the output.
func LockPath(lockDir, dst string) string {
	if lockDir == "" {
		lockDir = os.TempDir()
	}
	abs, err := filepath.Abs(dst)
	if err != nil {
		abs = dst
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(lockDir, "promote-"+hex.EncodeToString(sum[:8])+".lock")
}

// Promote copies src to dst while holding dst's lock, retrying transient
// failures. It returns the SHA256 of the promoted file. dst is either the
// complete, verified copy or untouched, and a failed promotion leaves no
// directories behind.
func Promote(ctx context.Context, src, dst string, opts PromoteOptions) (string, error) {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.Delay <= 0 {
		opts.Delay = 200 * time.Millisecond
	}
	logger := logging.WithContext(ctx, logging.NewComponentLogger(opts.Logger, "selection"))

	lockPath := LockPath(opts.LockDir, dst)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return "", fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return "", fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !ok {
		return "", fmt.Errorf("another promotion to %s is in progress", dst)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release promotion lock", logging.String("lock", lockPath), logging.Error(err))
		}
	}()

	var digest string
	err = retry.Do(
		func() error {
			var copyErr error
			digest, copyErr = fileutil.CopyFileAtomic(src, dst)
			return copyErr
		},
		retry.Context(ctx),
		retry.Attempts(uint(opts.Attempts)),
		retry.Delay(opts.Delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !errors.Is(err, fs.ErrNotExist) }),
		retry.OnRetry(func(n uint, err error) {
			logging.WarnWithContext(logger, "checkpoint copy failed; retrying", "promote_retry",
				logging.Int("attempt", int(n)+1),
				logging.String("output", dst),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check free space and permissions on the output directory"),
				logging.String(logging.FieldImpact, "promotion delayed"),
			)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("promote %s to %s: %w", src, dst, err)
	}
	logger.Info("checkpoint promoted",
		logging.String(logging.FieldCheckpoint, src),
		logging.String("output", dst),
		logging.String("sha256", digest),
	)
	return digest, nil
}
