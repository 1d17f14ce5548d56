package ads101x

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidField reports a Config field outside its domain. Nothing was
	// sent to the device.
	ErrInvalidField = errors.New("ads101x: invalid field")

	// ErrBus reports a failed register write or read. The driver never retries.
	ErrBus = errors.New("ads101x: bus error")

	// ErrTimeout reports a single-shot conversion that did not complete in time.
	ErrTimeout = errors.New("ads101x: conversion timeout")

	// ErrNotConfigured is returned by reads when no configuration is known to
	// be active on the device, either because none was written yet or because
	// the last write failed.
	ErrNotConfigured = errors.New("ads101x: device not configured")
)

// FieldError describes the offending field of a rejected Config.
type FieldError struct {
	Field  string
	Value  any
	Reason string
}

func (e *FieldError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("ads101x: invalid %s %v: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("ads101x: invalid %s %v", e.Field, e.Value)
}

func (e *FieldError) Is(target error) bool { return target == ErrInvalidField }

// BusError wraps the error of the underlying I2C transaction.
type BusError struct {
	Op   string // "write" or "read"
	Addr byte
	Reg  byte
	Err  error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("ads101x addr=0x%02X: %s reg=0x%02X: %v", e.Addr, e.Op, e.Reg, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

func (e *BusError) Is(target error) bool { return target == ErrBus }

// TimeoutError carries what the device last reported while polling.
type TimeoutError struct {
	Addr       byte
	Timeout    time.Duration
	Polls      int
	LastConfig uint16
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("ads101x addr=0x%02X: conversion timeout after %v (polls=%d last cfg=0x%04X)",
		e.Addr, e.Timeout, e.Polls, e.LastConfig)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
