package world

import "github.com/udisondev/grimoire/internal/model"

// Eligible reports whether caller may target token.
// A token is eligible if the caller owns it, it is visible, or the caller is a GM.
// Ineligible tokens are excluded from every lookup, never anonymized.
func Eligible(caller model.Caller, t model.Token) bool {
	return caller.GM || !t.Hidden || t.OwnedBy(caller.UserID)
}

// ForEachEligibleToken iterates scene tokens in scene order, skipping ineligible ones.
// If fn returns false, iteration stops early.
func ForEachEligibleToken(scene SceneContext, caller model.Caller, fn func(model.Token) bool) {
	for _, t := range scene.Tokens {
		if !Eligible(caller, t) {
			continue
		}
		if !fn(t) {
			return
		}
	}
}
