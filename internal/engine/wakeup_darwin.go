//go:build darwin

package engine

import "syscall"

// createWakeFd opens a self-pipe for cross-goroutine wakeups: Darwin has no
// eventfd, so a byte written to the pipe's write end wakes a PollIO blocked
// reading the registered read end.
func createWakeFd() (int, int, error) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}
	for _, fd := range fds {
		if err := syscall.SetNonblock(fd, true); err != nil {
			_ = syscall.Close(fds[0])
			_ = syscall.Close(fds[1])
			return 0, 0, err
		}
		syscall.CloseOnExec(fd)
	}
	return fds[0], fds[1], nil
}

func closeWakeFd(readFD, writeFD int) error {
	if readFD >= 0 {
		_ = syscall.Close(readFD)
	}
	if writeFD >= 0 && writeFD != readFD {
		_ = syscall.Close(writeFD)
	}
	return nil
}

// drainWake reads every byte sitting in the pipe.
func drainWake(fd int) {
	var buf [64]byte
	for {
		n, err := syscall.Read(fd, buf[:])
		if err != nil || n == 0 {
			return
		}
	}
}

// signalWake writes a single byte to wake a blocked PollIO.
func signalWake(fd int) error {
	_, err := syscall.Write(fd, []byte{1})
	return err
}
