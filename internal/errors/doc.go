// Package errors defines error types for the forkcoupled module.
//
// This package provides structured error types that wrap the different
// failure scenarios of spawning and coordinating a child process, plus
// sentinel errors for commonly checked conditions.
package errors
