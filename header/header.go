// Package header rewrites the tuning-constant declaration in a C header
// before each rebuild of the system under test.
package header

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrMarkerNotFound  = errors.New("marker not found")
	ErrMultipleMarkers = errors.New("marker found on more than one line")
)

// Declaration returns the canonical declaration of marker set to value.
func Declaration(marker string, value int) string {
	return fmt.Sprintf("const unsigned int %s = %d;", marker, value)
}

// Inject returns content with every line containing marker replaced by the
// canonical declaration. Other lines are copied unchanged and every output
// line ends with a single "\n".
func Inject(content, marker string, value int) string {
	lines := splitLines(content)

	var b strings.Builder
	b.Grow(len(content) + 32)

	for _, line := range lines {
		if strings.Contains(line, marker) {
			b.WriteString(Declaration(marker, value))
		} else {
			b.WriteString(line)
		}

		b.WriteByte('\n')
	}

	return b.String()
}

// CountMarkers returns how many lines of content contain marker.
func CountMarkers(content, marker string) int {
	n := 0
	for _, line := range splitLines(content) {
		if strings.Contains(line, marker) {
			n++
		}
	}

	return n
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}

	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return lines
}

// Snapshot is the header content captured once at sweep start. Every
// rewrite renders from it, never from the file currently on disk, so edits
// never compound.
type Snapshot struct {
	Path    string
	Marker  string
	content string
	mode    os.FileMode
}

// Capture reads path and validates that exactly one line contains marker.
func Capture(path, marker string) (Snapshot, error) {
	if marker == "" {
		return Snapshot{}, fmt.Errorf("capture %s: empty marker", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("stat %s: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read %s: %w", path, err)
	}

	s := Snapshot{
		Path:    path,
		Marker:  marker,
		content: string(data),
		mode:    info.Mode().Perm(),
	}

	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}

	return s, nil
}

// Validate checks that the snapshot declares the marker exactly once.
func (s Snapshot) Validate() error {
	switch n := CountMarkers(s.content, s.Marker); {
	case n == 0:
		return fmt.Errorf("%s: %w: %q", s.Path, ErrMarkerNotFound, s.Marker)
	case n > 1:
		return fmt.Errorf("%s: %w: %q appears %d times",
			s.Path, ErrMultipleMarkers, s.Marker, n)
	}

	return nil
}

// Content returns the captured original text.
func (s Snapshot) Content() string {
	return s.content
}

// Render returns the header text with the constant set to value.
func (s Snapshot) Render(value int) string {
	return Inject(s.content, s.Marker, value)
}

// Apply writes the header with the constant set to value. The file is
// rewritten in place so a held lock stays valid.
func (s Snapshot) Apply(value int) error {
	if err := os.WriteFile(s.Path, []byte(s.Render(value)), s.mode); err != nil {
		return fmt.Errorf("write %s: %w", s.Path, err)
	}

	return nil
}

// Restore writes the original captured content back to disk.
func (s Snapshot) Restore() error {
	if err := os.WriteFile(s.Path, []byte(s.content), s.mode); err != nil {
		return fmt.Errorf("restore %s: %w", s.Path, err)
	}

	return nil
}
