// SPDX-License-Identifier: MPL-2.0

//go:build windows

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// relaunchProcess runs a fresh copy of the binary on the same console and
// waits for it. Windows has no exec(2), so the parent stays until the child
// exits.
func relaunchProcess(ctx context.Context, args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	c := exec.CommandContext(ctx, exe, args...)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("relaunch %s: %w", exe, err)
	}
	return nil
}
