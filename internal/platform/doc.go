// Package platform maps the running host to the canonical platform identifier
// used as a key in MITS 11 release manifests ("linux-x64", "osx-arm64", ...).
// The support matrix is closed and 64-bit only; unsupported hosts fail before
// any network activity happens.
package platform
