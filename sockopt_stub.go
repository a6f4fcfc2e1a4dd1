//go:build !unix

package framed

import (
	"syscall"
)

// reuseAddrControl is a no-op where SO_REUSEADDR has no portable equivalent.
func reuseAddrControl(network, address string, c syscall.RawConn) error {
	return nil
}
