// Package types contains common read shapes shared between the service
// and the HTTP layer.
package types

import "time"

// TeamScore is the board-level score summary returned to clients.
type TeamScore struct {
	TeamID string `json:"team_id"`
	Name   string `json:"name"`
	Score  int64  `json:"score"`
}

// EffectView is the client-facing shape of an earned effect.
type EffectView struct {
	ID            string     `json:"id"`
	EffectID      string     `json:"effect_id"`
	Name          string     `json:"name"`
	Status        string     `json:"status"`
	RemainingUses int        `json:"remaining_uses"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// ActivationOutcome reports how an effect activation resolved.
// Action is one of "activated", "blocked", "reflected".
type ActivationOutcome struct {
	Success bool   `json:"success"`
	Action  string `json:"action,omitempty"`
	Reason  string `json:"reason,omitempty"`
}
