package download

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TimestampLayout is the minute-granularity stamp embedded in output names.
const TimestampLayout = "20060102_1504"

// OutputName builds "<prefix><suffix><YYYYMMDD_HHMM>.csv".
func OutputName(prefix, suffix string, t time.Time) string {
	return prefix + suffix + t.Format(TimestampLayout) + ".csv"
}

// RenameOver moves src to dst, replacing a stale dst instead of creating a
// second copy next to it.
func RenameOver(src, dst string) error {
	if filepath.Clean(src) == filepath.Clean(dst) {
		return nil
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	// Some platforms refuse to rename onto an existing file.
	if _, statErr := os.Stat(dst); statErr != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(src), err)
	}
	if rmErr := os.Remove(dst); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return fmt.Errorf("remove stale %s: %w", filepath.Base(dst), rmErr)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(src), err)
	}
	return nil
}
