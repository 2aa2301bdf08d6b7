// Package errors provides classified error primitives used across sitebuilder.
//
// A ClassifiedError carries a category (what failed), a severity (how bad it is)
// and a free-form context map. The orchestrator uses severity to decide whether a
// failure aborts the build; the CLI adapter maps categories to process exit codes.
//
// Example usage:
//
//	err := errors.FileSystemError("remove destination tree").
//		WithContext("path", dist).
//		WithCause(ioErr).
//		Build()
package errors
