// Package event defines the canonical game event passed between layers.
//
// Raw webhook payloads from the game client are normalized into a
// UnifiedGameEvent by the Adapter. Everything downstream (matcher,
// calculators, orchestrator) only ever sees the unified form.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"
)

// Kind tags the payload variant carried by a UnifiedGameEvent.
type Kind string

const (
	KindLoot       Kind = "LOOT"
	KindPet        Kind = "PET"
	KindSpeedrun   Kind = "SPEEDRUN"
	KindGamble     Kind = "BA_GAMBLE"
	KindChat       Kind = "CHAT"
	KindXPSnapshot Kind = "XP_SNAPSHOT"
)

// Payload is the closed union of kind-specific event data.
// Variants live in this package only; downstream code switches
// exhaustively on the concrete type.
type Payload interface {
	eventKind() Kind
}

// LootItem is a single dropped item with its stack size and unit price.
type LootItem struct {
	Name     string
	Quantity int64
	Price    int64
}

// Value returns price times quantity for the stack.
func (i LootItem) Value() int64 { return i.Price * i.Quantity }

// LootPayload carries the items of a drop plus their summed value.
type LootPayload struct {
	Items      []LootItem
	TotalValue int64
}

// PetPayload carries the name of an unlocked pet.
type PetPayload struct {
	Name string
}

// SpeedrunPayload carries a timed-run completion in whole seconds.
type SpeedrunPayload struct {
	Location string
	Seconds  int64
}

// GamblePayload carries the gamble count reported by the client.
type GamblePayload struct {
	Count int64
}

// ChatPayload carries a chat message that may trigger chat/puzzle tiles.
type ChatPayload struct {
	Message string
}

// XPSnapshotPayload marks a login/logout boundary used by experience tiles.
type XPSnapshotPayload struct {
	Logout bool
}

func (LootPayload) eventKind() Kind       { return KindLoot }
func (PetPayload) eventKind() Kind        { return KindPet }
func (SpeedrunPayload) eventKind() Kind   { return KindSpeedrun }
func (GamblePayload) eventKind() Kind     { return KindGamble }
func (ChatPayload) eventKind() Kind       { return KindChat }
func (XPSnapshotPayload) eventKind() Kind { return KindXPSnapshot }

// UnifiedGameEvent is the canonical, immutable event form.
type UnifiedGameEvent struct {
	ID            string // idempotency key, see RawEvent.IdempotencyKey
	Kind          Kind
	Player        string // game-client player name
	TeamAccountID string // team-scoped account id resolved at normalization
	Timestamp     time.Time
	Payload       Payload
}

// RawEvent mirrors the inbound webhook body. Unknown extra fields are
// ignored by normalization.
type RawEvent struct {
	EventID   string          `json:"event_id,omitempty"`
	Type      string          `json:"type"`
	Player    string          `json:"player_identifier"`
	Timestamp time.Time       `json:"timestamp"`
	Extra     json.RawMessage `json:"extra,omitempty"`
}

// IdempotencyKey returns a stable key for duplicate detection: the
// producer-supplied id when present, otherwise a digest of the event
// content. Webhook retries carry identical content and hash identically.
func (r RawEvent) IdempotencyKey() string {
	if r.EventID != "" {
		return r.EventID
	}
	h := sha256.New()
	h.Write([]byte(r.Type))
	h.Write([]byte{0})
	h.Write([]byte(r.Player))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(r.Timestamp.UnixNano(), 10)))
	h.Write([]byte{0})
	h.Write(r.Extra)
	return hex.EncodeToString(h.Sum(nil)[:16])
}
