// Package bootstrap orchestrates the install pipeline: version resolution,
// manifest lookup, artifact verification, extraction, and installer launch.
//
// The pipeline is strictly sequential and every error is terminal for the
// run. A workspace wraps the whole sequence and guarantees temporary state is
// released on every exit path, while verified cache files are kept for reuse.
package bootstrap
