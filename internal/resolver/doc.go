// Package resolver turns a user-supplied version selector into a concrete
// release version. Channel names (stable, latest, alpha, nightly) are resolved
// through plain-text pointer resources on the distribution server; explicit
// semantic versions pass through untouched and reproducibly.
package resolver
