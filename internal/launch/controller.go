package launch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/Arbin-com/mits11-release/internal/logger"
)

const (
	// DefaultPollInterval is the fixed interval between sentinel checks
	// while waiting for an elevated installer run to finish.
	DefaultPollInterval = 2 * time.Second

	// DefaultWaitTimeout bounds the sentinel wait. Installers can
	// legitimately run for a very long time, so this is on the order of hours.
	DefaultWaitTimeout = 3 * time.Hour

	// SilentFlag is forwarded to the nested installer in non-interactive mode.
	SilentFlag = "--silent"

	// HelperCommandName is the hidden CLI subcommand executed by the
	// elevated child process.
	HelperCommandName = "elevated-run"

	// sentinelFileMode lets the unprivileged parent read a sentinel written
	// by the elevated child.
	sentinelFileMode os.FileMode = 0o644

	// helperStartFailureCode is written to the sentinel when the installer
	// could not be started at all.
	helperStartFailureCode = 127
)

var (
	errPrivilegeLost      = errors.New("privileges were lost before the installer could run")
	errElevationDied      = errors.New("elevated process exited without reporting a result")
	errElevationTimeout   = errors.New("timed out waiting for the elevated installer to finish")
	errSentinelUnparsable = errors.New("sentinel file does not contain an exit code")
)

// ExitError carries a nested installer's non-zero exit code so the CLI can
// propagate it as the process exit status.
type ExitError struct {
	Code int
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return fmt.Sprintf("installer exited with code %d", e.Code)
}

// Controller runs the nested installer, transparently re-launching it with
// elevated privileges when the current process lacks them.
type Controller struct {
	// Silent forwards non-interactive mode to the installer.
	Silent bool
	// PollInterval is the sentinel polling cadence.
	PollInterval time.Duration
	// WaitTimeout bounds the sentinel wait.
	WaitTimeout time.Duration
	// Privileged probes whether this process already holds administrator
	// rights. Defaults to the platform probe; tests substitute their own.
	Privileged func() bool
	// SelfPath is the binary re-launched elevated for the helper run.
	// Defaults to os.Executable.
	SelfPath string
}

// NewController returns a controller with platform defaults.
func NewController(silent bool) *Controller {
	return &Controller{
		Silent:       silent,
		PollInterval: DefaultPollInterval,
		WaitTimeout:  DefaultWaitTimeout,
		Privileged:   processPrivileged,
	}
}

// Run executes the installer at installerPath and returns nil on exit code 0.
// A non-zero installer exit surfaces as *ExitError; elevation problems and
// timeouts surface as their own errors. sentinelPath is where an elevated
// child reports its result.
func (c *Controller) Run(ctx context.Context, installerPath, sentinelPath string) error {
	ctx = logger.WithName(ctx, "launch")

	if c.Privileged == nil {
		c.Privileged = processPrivileged
	}

	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}

	if c.WaitTimeout <= 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}

	if c.Privileged() {
		logger.InfoKV(ctx, "Running installer with current privileges", "installer", installerPath)
		return c.runDirect(ctx, installerPath)
	}

	logger.InfoKV(ctx, "Elevation required, relaunching installer", "installer", installerPath)

	helperPID, err := c.spawnElevated(installerPath, sentinelPath)
	if err != nil {
		return fmt.Errorf("request elevation: %w", err)
	}

	return c.waitForSentinel(ctx, sentinelPath, helperPID)
}

// runDirect executes the installer in-process-tree, forwarding the silent
// flag and piping the controlling terminal through where the platform
// supports it.
func (c *Controller) runDirect(ctx context.Context, installerPath string) error {
	// An elevation prompt can be dismissed or a token dropped between the
	// first probe and this point, so re-validate right before executing.
	if !c.Privileged() {
		return errPrivilegeLost
	}

	cmd := installerCommand(ctx, installerPath, c.installerArgs())
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	tty := attachTerminal(cmd)
	if tty != nil {
		defer func() {
			_ = tty.Close()
		}()
	}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode()}
		}

		return fmt.Errorf("run installer: %w", err)
	}

	return nil
}

// installerArgs returns the arguments forwarded to the nested installer.
func (c *Controller) installerArgs() []string {
	if c.Silent {
		return []string{SilentFlag}
	}

	return nil
}

// selfExecutable resolves the binary to re-launch for the elevated helper.
func (c *Controller) selfExecutable() (string, error) {
	if c.SelfPath != "" {
		return c.SelfPath, nil
	}

	return os.Executable()
}

// waitForSentinel polls for the sentinel written by the elevated child.
// The two processes sit on opposite sides of a privilege boundary, so a
// polled file is the only synchronization primitive reliable on every
// platform. Cancellation is deliberately not supported once elevation has
// been requested; the bounded timeout is the sole termination path.
func (c *Controller) waitForSentinel(ctx context.Context, sentinelPath string, helperPID int) error {
	logger.InfoKV(ctx, "Waiting for elevated installer to finish",
		"sentinel", sentinelPath, "timeout", c.WaitTimeout.String())

	deadline := time.Now().Add(c.WaitTimeout)
	ticker := time.NewTicker(c.PollInterval)

	defer ticker.Stop()

	// The helper may exit a moment before its sentinel write becomes
	// visible, so allow one extra poll after it disappears.
	helperGonePolls := 0

	for range ticker.C {
		code, found, err := readSentinel(sentinelPath)
		if err != nil {
			return err
		}

		if found {
			if code != 0 {
				return &ExitError{Code: code}
			}

			return nil
		}

		if helperPID != 0 && !processAlive(helperPID) {
			helperGonePolls++
			if helperGonePolls > 1 {
				return errElevationDied
			}
		}

		if time.Now().After(deadline) {
			return errElevationTimeout
		}
	}

	return errElevationTimeout
}

// readSentinel parses the sentinel file if it exists.
func readSentinel(path string) (code int, found bool, err error) {
	contents, err := os.ReadFile(path) //nolint:gosec // Path is process-private.
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, false, nil
		}

		return 0, false, fmt.Errorf("read sentinel: %w", err)
	}

	body := strings.TrimSpace(string(contents))
	if body == "" {
		// The file can exist before its contents are visible; treat it the
		// same as not yet written and poll again.
		return 0, false, nil
	}

	code, err = strconv.Atoi(body)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q", errSentinelUnparsable, body)
	}

	return code, true, nil
}

// WriteSentinel records the installer exit code for the polling parent.
// The write is staged next to the final path and renamed into place, so the
// poller never observes a partially written sentinel.
func WriteSentinel(path string, code int) error {
	staged := path + ".partial"
	if err := os.WriteFile(staged, []byte(strconv.Itoa(code)), sentinelFileMode); err != nil {
		return err
	}

	return os.Rename(staged, path)
}

// processAlive reports whether a process with the given pid still exists.
func processAlive(pid int) bool {
	process, err := ps.FindProcess(pid)
	if err != nil {
		// Inspection failure is not proof of death; keep waiting.
		return true
	}

	return process != nil
}

// RunHelper is the body of the hidden elevated-run subcommand. It executes
// the installer with the privileges this process already holds, writes the
// captured exit code to the sentinel, and returns that code for use as the
// helper's own exit status.
func RunHelper(ctx context.Context, installerPath, sentinelPath string, silent bool) int {
	var args []string
	if silent {
		args = append(args, SilentFlag)
	}

	cmd := installerCommand(ctx, installerPath, args)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	code := 0

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = helperStartFailureCode
		}
	}

	if err := WriteSentinel(sentinelPath, code); err != nil {
		logger.ErrorKV(ctx, "Failed to write sentinel", "path", sentinelPath, "error", err)

		if code == 0 {
			code = helperStartFailureCode
		}
	}

	return code
}
