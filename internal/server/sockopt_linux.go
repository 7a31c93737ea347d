//go:build linux

package server

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// controlSocket prepares the DHCP socket before bind: SO_REUSEADDR so a
// restart does not fight the dying process for the port, SO_BROADCAST
// because most replies go to 255.255.255.255, and SO_BINDTODEVICE when a
// single serving interface is configured.
func controlSocket(iface string) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var ctrlErr error
		err := c.Control(func(fd uintptr) {
			if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
				ctrlErr = err
				return
			}
			if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1); err != nil {
				ctrlErr = err
				return
			}
			if iface != "" {
				if err := unix.BindToDevice(int(fd), iface); err != nil {
					ctrlErr = err
				}
			}
		})
		if err != nil {
			return err
		}
		return ctrlErr
	}
}
