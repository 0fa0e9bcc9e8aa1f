// Package component manages the lifecycle of the long-running parts of a
// ylai process. Registry.Run starts them in order, waits for the context
// and stops them in reverse.
package component
