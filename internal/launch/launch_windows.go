//go:build windows

package launch

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// processPrivileged reports whether the process token is elevated.
func processPrivileged() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

// spawnElevated re-launches this binary's helper subcommand through
// ShellExecute with the runas verb, which triggers the UAC prompt.
// ShellExecute exposes no process handle, so the returned pid is 0 and the
// liveness probe is skipped; the sentinel wait and its timeout carry the
// whole handshake.
func (c *Controller) spawnElevated(installerPath, sentinelPath string) (int, error) {
	self, err := c.selfExecutable()
	if err != nil {
		return 0, err
	}

	args := []string{HelperCommandName, installerPath, sentinelPath}
	if c.Silent {
		args = append(args, SilentFlag)
	}

	escaped := make([]string, 0, len(args))
	for _, a := range args {
		escaped = append(escaped, syscall.EscapeArg(a))
	}

	verb, err := windows.UTF16PtrFromString("runas")
	if err != nil {
		return 0, err
	}

	exe, err := windows.UTF16PtrFromString(self)
	if err != nil {
		return 0, err
	}

	params, err := windows.UTF16PtrFromString(strings.Join(escaped, " "))
	if err != nil {
		return 0, err
	}

	if err = windows.ShellExecute(0, verb, exe, params, nil, windows.SW_NORMAL); err != nil {
		return 0, err
	}

	return 0, nil
}

// installerCommand builds the command for the nested installer. Batch
// installers must run through the command interpreter.
func installerCommand(ctx context.Context, installerPath string, args []string) *exec.Cmd {
	lower := strings.ToLower(installerPath)
	if strings.HasSuffix(lower, ".bat") || strings.HasSuffix(lower, ".cmd") {
		interpreterArgs := append([]string{"/C", installerPath}, args...)
		return exec.CommandContext(ctx, "cmd.exe", interpreterArgs...)
	}

	return exec.CommandContext(ctx, installerPath, args...) //nolint:gosec // Located inside the verified archive.
}

// attachTerminal is a no-op on Windows; console inheritance handles prompting.
func attachTerminal(_ *exec.Cmd) *os.File {
	return nil
}
