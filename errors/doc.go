// Package errors provides the structured error type shared by the console
// client packages, the gateway and the mock backend.
//
// An AppError carries a machine-readable code, a user-facing message, the
// HTTP status a server should answer with, and whether retrying can help.
package errors
