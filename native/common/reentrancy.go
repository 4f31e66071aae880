package common

import "errors"

var ErrReentrancy = errors.New("reentrancy detected")

// Enter claims the in-flight flag. The flag lives inside persisted state so it
// stays visible to any callback an external program makes before the outer
// instruction finishes; callers must persist the record right after Enter.
func Enter(locked *bool) error {
	if locked == nil {
		return ErrReentrancy
	}
	if *locked {
		return ErrReentrancy
	}
	*locked = true
	return nil
}

// Exit releases the flag.
func Exit(locked *bool) {
	if locked != nil {
		*locked = false
	}
}
