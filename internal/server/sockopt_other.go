//go:build !linux

package server

import "syscall"

// Non-Linux builds exist for development only; broadcast socket options
// and device binding are left to the platform defaults.
func controlSocket(string) func(network, address string, c syscall.RawConn) error {
	return nil
}
