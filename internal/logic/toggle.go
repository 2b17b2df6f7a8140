package logic

// ResolveToggle picks the action that inverts the last known lock status.
// Indeterminate status (neither flag set) resolves to unlock; ambiguous
// reports that case so the caller can log it.
func ResolveToggle(status LockStatus) (action Action, ambiguous bool) {
	switch {
	case status.Locked:
		return ActionUnlock, false
	case status.Unlocked:
		return ActionLock, false
	default:
		return ActionUnlock, true
	}
}
