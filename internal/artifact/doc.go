// Package artifact maintains the content-addressed cache of release archives
// and enforces the integrity gate: no archive leaves this package without its
// SHA-256 matching the manifest-declared hash. Downloads are staged under a
// .partial name and renamed into place only after verification, so concurrent
// invocations race benignly at worst.
package artifact
