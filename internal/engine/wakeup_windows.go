//go:build windows

package engine

// createWakeFd returns -1, -1: Windows has no fd-based wake mechanism. The
// loop instead wakes PollIO directly via the poller's IOCP handle (see
// Loop.wake, which calls poller.Wakeup()).
func createWakeFd() (int, int, error) {
	return -1, -1, nil
}

func closeWakeFd(readFD, writeFD int) error {
	return nil
}

func drainWake(fd int) {}

func signalWake(fd int) error {
	return nil
}
