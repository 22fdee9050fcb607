//go:build !windows

package launch

import (
	"context"
	"os"
	"os/exec"
	"strings"
)

// processPrivileged reports whether the process runs as root.
func processPrivileged() bool {
	return os.Geteuid() == 0
}

// spawnElevated re-launches this binary's helper subcommand under sudo and
// returns the spawned pid. The command deliberately carries no context: once
// elevation is requested the only termination path is the bounded wait.
func (c *Controller) spawnElevated(installerPath, sentinelPath string) (int, error) {
	self, err := c.selfExecutable()
	if err != nil {
		return 0, err
	}

	args := []string{self, HelperCommandName, installerPath, sentinelPath}
	if c.Silent {
		args = append(args, SilentFlag)
	}

	cmd := exec.Command("sudo", args...) //nolint:gosec // Arguments come from verified local paths.
	// sudo needs the terminal to prompt for a password.
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err = cmd.Start(); err != nil {
		return 0, err
	}

	// Reap the child so the liveness probe sees its exit instead of a zombie.
	go func() {
		_ = cmd.Wait()
	}()

	return cmd.Process.Pid, nil
}

// installerCommand builds the command for the nested installer. Shell-script
// installers run through /bin/sh so the archive does not need to preserve an
// executable bit.
func installerCommand(ctx context.Context, installerPath string, args []string) *exec.Cmd {
	if strings.HasSuffix(installerPath, ".sh") {
		shellArgs := append([]string{installerPath}, args...)
		return exec.CommandContext(ctx, "/bin/sh", shellArgs...)
	}

	return exec.CommandContext(ctx, installerPath, args...) //nolint:gosec // Located inside the verified archive.
}

// attachTerminal routes the controlling terminal to the installer when this
// process's own stdin is redirected, so the installer can still prompt.
// Returns the tty handle for the caller to close, or nil.
func attachTerminal(cmd *exec.Cmd) *os.File {
	info, err := os.Stdin.Stat()
	if err == nil && info.Mode()&os.ModeCharDevice != 0 {
		// Stdin already is the terminal.
		return nil
	}

	tty, err := os.Open("/dev/tty")
	if err != nil {
		// No controlling terminal; leave stdin as-is.
		return nil
	}

	cmd.Stdin = tty

	return tty
}
