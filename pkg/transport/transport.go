// Package transport implements the connection-establishment primitives of
// spec.md §4.1: a timeout-bounded dialer built on net.Dialer (grounded on
// the original source's open_connection), a TCP listener, a Unix-domain
// listener, and a FIFO opener.
package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/shardcache-go/shc/pkg/wire"
)

// addrPattern is the address-string validation regex from spec.md §6:
// host, host:port, "*" (listen-any), or an IPv4 literal.
var addrPattern = regexp.MustCompile(`^([A-Za-z0-9_.\-]+|\*)(:[0-9]+)?$`)

// resolveMu serializes name resolution, per spec.md §9's note that some
// resolver implementations are not thread-safe under high concurrency.
// Go's resolver is safe for concurrent use, so this lock is provably
// elidable; it is kept only to document and preserve the original's
// serialization point, as spec.md instructs.
var resolveMu sync.Mutex

// ValidateAddress reports whether s matches the protocol's address-string
// grammar (spec.md §6).
func ValidateAddress(s string) bool {
	return addrPattern.MatchString(s)
}

// ParseHostPort splits "host", "host:port", or "*[:port]" into a host and
// port, applying fallbackPort when no port is present. "*" maps to the
// empty host string, meaning listen-on-all-interfaces.
func ParseHostPort(s string, fallbackPort int) (host string, port int, err error) {
	if !ValidateAddress(s) {
		return "", 0, wire.TransportError(fmt.Sprintf("invalid address %q", s), syscall.EINVAL)
	}
	host = s
	port = fallbackPort
	if i := strings.LastIndex(s, ":"); i >= 0 {
		host = s[:i]
		p, perr := strconv.Atoi(s[i+1:])
		if perr != nil {
			return "", 0, wire.TransportError(fmt.Sprintf("invalid port in %q", s), syscall.EINVAL)
		}
		port = p
	}
	if host == "*" {
		host = ""
	}
	return host, port, nil
}

// Dial opens a TCP connection to hostport (same grammar as ParseHostPort),
// applying timeout to the connect only; no read or write deadline is set
// on the returned connection. A zero timeout uses ctx's deadline if
// present, otherwise no timeout.
//
// Grounded on the original source's open_connection: resolve under
// resolveMu, set SO_REUSEADDR/TCP_NODELAY, and bound the connect with
// net.Dialer's Timeout.
func Dial(ctx context.Context, hostport string, fallbackPort int, timeout time.Duration) (net.Conn, error) {
	host, port, err := ParseHostPort(hostport, fallbackPort)
	if err != nil {
		return nil, err
	}
	if host == "" {
		host = "127.0.0.1"
	}

	resolveMu.Lock()
	ips, rerr := net.DefaultResolver.LookupIPAddr(ctx, host)
	resolveMu.Unlock()
	if rerr != nil {
		return nil, wire.TransportError(fmt.Sprintf("resolving %q", host), rerr)
	}
	if len(ips) == 0 {
		return nil, wire.TransportError(fmt.Sprintf("no addresses for %q", host), syscall.ENOENT)
	}

	d := net.Dialer{}
	if timeout > 0 {
		d.Timeout = timeout
	} else if deadline, ok := ctx.Deadline(); ok {
		d.Timeout = time.Until(deadline)
	}
	d.Control = func(_, _ string, c syscall.RawConn) error {
		var ctlErr error
		err := c.Control(func(fd uintptr) {
			ctlErr = setDialSockOpts(int(fd))
		})
		if err != nil {
			return err
		}
		return ctlErr
	}

	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ips[0].String(), strconv.Itoa(port)))
	if err != nil {
		return nil, wire.TransportError(fmt.Sprintf("connecting to %s:%d", host, port), err)
	}
	return conn, nil
}

func setDialSockOpts(fd int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		return err
	}
	return nil
}

// Listen opens a TCP listener on hostOrStar:port. hostOrStar of "" or "*"
// binds all interfaces. Sets SO_REUSEADDR and arranges for accepted
// connections to be close-on-exec, per the original's open_socket.
func Listen(hostOrStar string, port int) (net.Listener, error) {
	if hostOrStar == "*" {
		hostOrStar = ""
	}
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var ctlErr error
			err := c.Control(func(fd uintptr) {
				ctlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return ctlErr
		},
	}
	l, err := lc.Listen(context.Background(), "tcp", net.JoinHostPort(hostOrStar, strconv.Itoa(port)))
	if err != nil {
		return nil, wire.TransportError(fmt.Sprintf("listening on %s:%d", hostOrStar, port), err)
	}
	return l, nil
}

// ListenUnix opens a Unix-domain stream listener at path, matching the
// original's open_lsocket for local-only deployments. A stale socket file
// left behind by an unclean shutdown is unlinked first, mirroring
// open_lsocket's unlink(filename) before bind.
func ListenUnix(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, wire.TransportError(fmt.Sprintf("removing stale unix socket %q", path), err)
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, wire.TransportError(fmt.Sprintf("listening on unix socket %q", path), err)
	}
	return l, nil
}

// SetLinger applies SO_LINGER{on=1, linger=0} to conn if it is a
// *net.TCPConn, forcing an immediate RST-based close instead of the
// usual graceful FIN/TIME_WAIT sequence. The server applies it to every
// accepted connection, mirroring the original's SO_LINGER usage in
// open_socket.
func SetLinger(conn net.Conn) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	return tc.SetLinger(0)
}
