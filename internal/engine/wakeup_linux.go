//go:build linux

package engine

import "golang.org/x/sys/unix"

// createWakeFd opens an eventfd for cross-goroutine wakeups. The same fd is
// used for both reading (drained on the loop goroutine) and writing
// (incremented by any submitting goroutine).
func createWakeFd() (int, int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	return fd, fd, err
}

func closeWakeFd(readFD, writeFD int) error {
	if readFD >= 0 {
		return unix.Close(readFD)
	}
	return nil
}

// drainWake consumes the eventfd counter so the next PollIO blocks again.
func drainWake(fd int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(fd, buf[:]); err != nil {
			return
		}
	}
}

// signalWake increments the eventfd counter by one, waking a blocked
// PollIO.
func signalWake(fd int) error {
	var buf [8]byte
	buf[0] = 1
	_, err := unix.Write(fd, buf[:])
	return err
}
