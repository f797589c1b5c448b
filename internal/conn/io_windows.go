//go:build windows

package conn

import "golang.org/x/sys/windows"

// ErrWouldBlock is returned by writeSome when the non-blocking socket's
// send buffer is full; the engine registers for writability and retries.
var ErrWouldBlock = windows.WSAEWOULDBLOCK

func sysRead(fd int, buf []byte) (int, error) {
	n, err := windows.Recv(windows.Handle(fd), buf, 0)
	if err == windows.WSAEWOULDBLOCK {
		return 0, ErrWouldBlock
	}
	return n, err
}

func sysWrite(fd int, buf []byte) (int, error) {
	n, err := windows.Send(windows.Handle(fd), buf, 0)
	if err == windows.WSAEWOULDBLOCK {
		return 0, ErrWouldBlock
	}
	return n, err
}

func sysClose(fd int) error {
	return windows.Closesocket(windows.Handle(fd))
}
