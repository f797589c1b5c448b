//go:build windows

package engine

import (
	"net"
	"strconv"

	"golang.org/x/sys/windows"
)

// dialNonblocking mirrors dial_unix.go's contract using winsock calls.
func dialNonblocking(host string, port int) (int, error) {
	ips, err := net.LookupIP(host)
	if err != nil {
		return -1, err
	}

	var sa windows.Sockaddr
	var domain int32
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			var addr [4]byte
			copy(addr[:], v4)
			sa = &windows.SockaddrInet4{Port: port, Addr: addr}
			domain = windows.AF_INET
			break
		}
		if v6 := ip.To16(); v6 != nil {
			var addr [16]byte
			copy(addr[:], v6)
			sa = &windows.SockaddrInet6{Port: port, Addr: addr}
			domain = windows.AF_INET6
			break
		}
	}
	if sa == nil {
		return -1, &net.AddrError{Err: "no usable address", Addr: host + ":" + strconv.Itoa(port)}
	}

	h, err := windows.Socket(domain, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	if err := windows.SetNonblock(h, true); err != nil {
		_ = windows.Closesocket(h)
		return -1, err
	}

	err = windows.Connect(h, sa)
	if err != nil && err != windows.WSAEWOULDBLOCK {
		_ = windows.Closesocket(h)
		return -1, err
	}
	return int(h), nil
}

func connectResult(fd int) error {
	errno, err := windows.GetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return windows.Errno(errno)
	}
	return nil
}
