// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package cmd

import (
	"context"
	"fmt"
	"os"
	"syscall"
)

// relaunchProcess replaces the running image with a fresh one. It only
// returns on failure.
func relaunchProcess(_ context.Context, args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	argv := append([]string{exe}, args...)
	if err := syscall.Exec(exe, argv, os.Environ()); err != nil {
		return fmt.Errorf("relaunch %s: %w", exe, err)
	}
	return nil
}
