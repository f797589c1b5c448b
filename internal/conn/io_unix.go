//go:build linux || darwin

package conn

import "golang.org/x/sys/unix"

// ErrWouldBlock is returned by writeSome when the non-blocking socket's send
// buffer is full; the engine registers for writability and retries.
var ErrWouldBlock = unix.EAGAIN

func sysRead(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

func sysWrite(fd int, buf []byte) (int, error) {
	n, err := unix.Write(fd, buf)
	if err == unix.EAGAIN {
		return 0, ErrWouldBlock
	}
	return n, err
}

func sysClose(fd int) error {
	return unix.Close(fd)
}
