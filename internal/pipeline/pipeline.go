// Package pipeline runs hook stages under one of two error policies.
//
// The guard hook is fail-secure: a stage that errors or panics turns into a
// blocking result. The context hook is fail-soft: a failed stage simply
// contributes nothing.
package pipeline

import (
	"fmt"

	"github.com/dgerlanc/hookgate/internal/logger"
)

// PanicError is a recovered panic from a stage.
type PanicError struct {
	Stage string
	Cause any
}

func (e *PanicError) Error() string {
	if err, ok := e.Cause.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Cause)
}

// Unwrap exposes an error passed to panic.
func (e *PanicError) Unwrap() error {
	err, _ := e.Cause.(error)
	return err
}

// Run calls fn and converts a panic into a *PanicError.
func Run[T any](stage string, fn func() (T, error)) (result T, err error) {
	done := logger.Stage(stage)
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = &PanicError{Stage: stage, Cause: r}
		}
		if err != nil {
			done("error", err.Error())
		} else {
			done()
		}
	}()
	return fn()
}

// FailSecure runs fn. On error or panic it returns escalate(err), which must
// not fail itself.
func FailSecure[T any](stage string, fn func() (T, error), escalate func(error) T) T {
	result, err := Run(stage, fn)
	if err != nil {
		logger.Warn("stage failed, escalating", "stage", stage, "error", err)
		return escalate(err)
	}
	return result
}

// FailSoft runs fn. On error or panic it returns the zero value and false.
func FailSoft[T any](stage string, fn func() (T, error)) (T, bool) {
	result, err := Run(stage, fn)
	if err != nil {
		logger.Debug("stage failed, skipping", "stage", stage, "error", err)
		var zero T
		return zero, false
	}
	return result, true
}
