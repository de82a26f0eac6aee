// Package transcript renders segment lists as timestamped text files.
//
// Each line has the form "[H:MM:SS] text". Hours are not padded.
package transcript

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/chaz8081/gostt-batch/internal/timeline"
)

// FormatTimestamp formats d as H:MM:SS, dropping sub-second precision.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

// Write writes one line per segment to w in the order given.
func Write(w io.Writer, segments []timeline.Segment) error {
	bw := bufio.NewWriter(w)
	for _, s := range segments {
		if _, err := fmt.Fprintf(bw, "[%s] %s\n", FormatTimestamp(s.Start), s.Text); err != nil {
			return fmt.Errorf("transcript: write: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("transcript: flush: %w", err)
	}
	return nil
}

// WriteFile writes segments to path, replacing any existing file.
func WriteFile(path string, segments []timeline.Segment) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("transcript: create %s: %w", path, err)
	}
	if err := Write(f, segments); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("transcript: close %s: %w", path, err)
	}
	return nil
}

// FileName returns the compiled transcript name for a source file stem.
func FileName(stem string) string {
	return stem + ".txt"
}

// WindowFileName returns the per-window transcript name. index is the
// 0-based window index; the name carries a 1-based ordinal.
func WindowFileName(stem string, index int) string {
	return fmt.Sprintf("%s_part%02d.txt", stem, index+1)
}

// Stem returns the file name of path without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
