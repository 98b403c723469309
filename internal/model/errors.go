package model

import "fmt"

// ValidationError: malformed or missing request input, maps to a 4xx.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// AuthError: token exchange or refresh failed upstream.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("auth %s failed", e.Op)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RegistrationError: webhook (re-)registration rejected by upstream.
type RegistrationError struct {
	Status int
	Err    error
}

func (e *RegistrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook registration: %v", e.Err)
	}
	return fmt.Sprintf("webhook registration failed with status %d", e.Status)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// CommandError: actuator command rejected by upstream (anything but 202).
type CommandError struct {
	DeviceID string
	Status   int
	Err      error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command for %s: %v", e.DeviceID, e.Err)
	}
	return fmt.Sprintf("command for %s failed with status %d", e.DeviceID, e.Status)
}

func (e *CommandError) Unwrap() error { return e.Err }

// StorageError: key-value read or write failed.
type StorageError struct {
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("kv store %q: %v", e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
