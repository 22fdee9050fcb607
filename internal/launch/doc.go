// Package launch runs the nested installer extracted from a release archive.
//
// When the process already holds administrator rights the installer runs
// directly. Otherwise the controller re-launches this binary's hidden helper
// subcommand with elevated privileges and waits for a sentinel file carrying
// the installer's exit code, polling at a fixed interval with a hard timeout.
// The sentinel handshake exists because the parent and the elevated child
// cannot share memory or a pipe reliably across the privilege boundary on
// every supported platform.
package launch
