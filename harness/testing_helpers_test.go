package harness

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// identityCipher copies input to output and appends each key it sees to a
// "keys" file next to the output.
const identityCipher = `#!/bin/sh
[ "$3" = "-k" ] || exit 2
echo "$4" >> "$(dirname "$5")/keys"
cp "$2" "$5"
`

// corruptingCipher encrypts faithfully but appends a byte when decrypting.
const corruptingCipher = `#!/bin/sh
cp "$2" "$5" || exit 1
if [ "$1" = "-d" ]; then printf x >> "$5"; fi
`

const failingEncrypt = `#!/bin/sh
if [ "$1" = "-e" ]; then echo "boom" >&2; exit 3; fi
cp "$2" "$5"
`

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))

	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
