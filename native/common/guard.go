package common

import (
	"errors"
	"fmt"
	"strings"
)

var ErrModulePaused = errors.New("module paused")

// PauseView exposes operator-level pause switches keyed by module name. They
// sit above the per-protocol paused flags persisted in state.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrModulePaused, naming the module, when the operator has
// switched it off. A nil view never blocks.
//
// Engines call Guard on user-facing entry points only. Authority-only
// instructions (pause, resume, epoch changes, emergency withdrawals) and
// cross-module bookkeeping of funds already moved, such as
// staking.RecordExternalRewards, bypass it.
func Guard(view PauseView, module string) error {
	name := normalizeModule(module)
	if view == nil || name == "" || !view.IsPaused(name) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrModulePaused, name)
}

// StaticPauses is a PauseView backed by a fixed set of module names.
type StaticPauses map[string]bool

func (s StaticPauses) IsPaused(module string) bool {
	return s[normalizeModule(module)]
}

func normalizeModule(module string) string {
	return strings.ToLower(strings.TrimSpace(module))
}
