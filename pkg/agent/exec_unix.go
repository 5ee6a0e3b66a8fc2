//go:build unix

package agent

import (
	"fmt"
	"os"
	"syscall"
)

// Exec replaces the current process with a fresh copy of the same binary
// and arguments. It only returns on failure.
func Exec() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	return syscall.Exec(exe, os.Args, os.Environ())
}
