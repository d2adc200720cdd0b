// Package types defines the contracts shared across the engine: the executor
// capability consumed to run a single step, and the typed error taxonomy that
// callers branch on with errors.As instead of string matching.
package types
