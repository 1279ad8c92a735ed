package transport

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/shardcache-go/shc/pkg/wire"
)

// OpenFIFO creates (if needed) and opens a named pipe at path for
// bidirectional non-blocking I/O, grounded on the original's open_fifo: if
// the path already exists it must already be a FIFO, otherwise this is a
// TransportError.
func OpenFIFO(path string) (*os.File, error) {
	if err := unix.Mkfifo(path, 0o600); err != nil {
		if err != unix.EEXIST {
			return nil, wire.TransportError(fmt.Sprintf("creating fifo %q", path), err)
		}
		info, statErr := os.Stat(path)
		if statErr != nil {
			return nil, wire.TransportError(fmt.Sprintf("stat existing path %q", path), statErr)
		}
		if info.Mode()&os.ModeNamedPipe == 0 {
			return nil, wire.TransportError(fmt.Sprintf("%q exists and is not a fifo", path), unix.EEXIST)
		}
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, wire.TransportError(fmt.Sprintf("opening fifo %q", path), err)
	}
	if err := unix.CloseOnExec(fd); err != nil {
		unix.Close(fd)
		return nil, wire.TransportError("setting close-on-exec on fifo", err)
	}

	return os.NewFile(uintptr(fd), path), nil
}
