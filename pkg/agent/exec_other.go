//go:build !unix

package agent

import "errors"

// Exec is unsupported on this platform; the service manager must restart
// the process.
func Exec() error {
	return errors.New("in-place restart not supported on this platform")
}
