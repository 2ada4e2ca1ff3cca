//go:build unix

package assets

import (
	"time"

	"github.com/pkg/errors"

	"github.com/droidres/reskit/pkg/fdbuf"
)

// LoadTableFromFd drains a resource table from a descriptor under a poll
// deadline and parses it. Useful when the table arrives over a pipe or
// socket rather than from a file.
func LoadTableFromFd(fd int, path string, timeout time.Duration) (*ApkAssets, error) {
	var buf fdbuf.Buffer
	if err := buf.Read(fd, timeout); err != nil {
		return nil, errors.Wrapf(err, "read table from fd %d", fd)
	}
	if buf.Truncated() {
		return nil, errors.Errorf("table from fd %d exceeds buffer capacity", fd)
	}
	if buf.TimedOut() {
		return nil, errors.Errorf("table from fd %d timed out before EOF", fd)
	}
	return LoadTable(buf.Data(), path)
}
