package domain

import (
	"fmt"
	"strings"
)

// EnsureState is the existence/power state of a machine. Observed states are
// limited to running, stopped and absent; present is only ever desired.
type EnsureState string

const (
	EnsurePresent EnsureState = "present"
	EnsureRunning EnsureState = "running"
	EnsureStopped EnsureState = "stopped"
	EnsureAbsent  EnsureState = "absent"
)

func (e EnsureState) String() string {
	return string(e)
}

func (e EnsureState) Valid() bool {
	switch e {
	case EnsurePresent, EnsureRunning, EnsureStopped, EnsureAbsent:
		return true
	}
	return false
}

// Exists reports whether the state describes a machine that exists remotely.
func (e EnsureState) Exists() bool {
	return e != "" && e != EnsureAbsent
}

func (e *EnsureState) UnmarshalText(text []byte) error {
	s := EnsureState(strings.ToLower(strings.TrimSpace(string(text))))
	if s == "" {
		s = EnsurePresent
	}
	if !s.Valid() {
		return fmt.Errorf("invalid ensure value %q (valid: present, running, stopped, absent)", string(text))
	}
	*e = s
	return nil
}

func (e EnsureState) MarshalText() ([]byte, error) {
	return []byte(e), nil
}
