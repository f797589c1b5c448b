// Package engine runs the single-threaded reactor that owns every socket,
// every connection's parser state, and the fixed-size idle connection
// pool. Callers on other goroutines only ever touch Submit and a Mailbox;
// everything else here runs exclusively on the loop goroutine started by
// Run.
package engine
