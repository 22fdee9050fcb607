// Package manifest fetches per-version release manifests and extracts the
// artifact entry for one platform. Extraction runs behind the Parser
// interface with two interchangeable backends: a structured JSON parser and
// a bracket-balanced text fallback, selected once at startup by capability
// probing. Both reject the same malformed inputs, so the integrity rules do
// not depend on which backend happens to be in use.
package manifest
