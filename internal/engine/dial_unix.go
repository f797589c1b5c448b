//go:build linux || darwin

package engine

import (
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// dialNonblocking starts a TCP connect to host:port and returns immediately
// with a non-blocking socket fd, before the connection is necessarily
// established. The caller registers the fd for writability; a writable
// event (checked with connectResult) signals the connect attempt finished,
// successfully or not.
func dialNonblocking(host string, port int) (int, error) {
	ips, err := net.LookupIP(host)
	if err != nil {
		return -1, err
	}
	var sa unix.Sockaddr
	var domain int
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			var addr [4]byte
			copy(addr[:], v4)
			sa = &unix.SockaddrInet4{Port: port, Addr: addr}
			domain = unix.AF_INET
			break
		}
		if v6 := ip.To16(); v6 != nil {
			var addr [16]byte
			copy(addr[:], v6)
			sa = &unix.SockaddrInet6{Port: port, Addr: addr}
			domain = unix.AF_INET6
			break
		}
	}
	if sa == nil {
		return -1, &net.AddrError{Err: "no usable address", Addr: host + ":" + strconv.Itoa(port)}
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}

	err = unix.Connect(fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// connectResult checks a non-blocking connect's outcome once the fd reports
// writable: a zero SO_ERROR means the connection succeeded.
func connectResult(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}
