//go:build !linux && !freebsd

package report

import "os"

func syncFile(f *os.File) error {
	return f.Sync()
}
