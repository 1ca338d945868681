package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clanhall/bingo/pkg/logger"
)

// Raw producer type strings the adapter understands. Anything else is
// non-qualifying and normalizes to nil.
const (
	rawTypeLoot      = "LOOT"
	rawTypePet       = "PET"
	rawTypeSpeedrun  = "SPEEDRUN"
	rawTypeKillCount = "KILL_COUNT"
	rawTypeBAGamble  = "BARBARIAN_ASSAULT_GAMBLE_COUNT"
	rawTypeChat      = "CHAT"
	rawTypeLogin     = "LOGIN"
	rawTypeLogout    = "LOGOUT"
)

// AccountResolver maps a game-client player name to a team-scoped
// account identifier. Unknown players resolve to ErrUnknownPlayer.
type AccountResolver interface {
	ResolveAccount(ctx context.Context, player string) (string, error)
}

// Adapter normalizes raw webhook events into UnifiedGameEvents.
type Adapter struct {
	resolver AccountResolver
	logger   logger.Logger
}

// AdapterOption applies a configuration option to the Adapter.
type AdapterOption func(*Adapter)

// WithAdapterLogger sets a custom logger for the adapter.
func WithAdapterLogger(l logger.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAdapter creates an adapter bound to an account resolver.
func NewAdapter(resolver AccountResolver, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		resolver: resolver,
		logger:   logger.Get().Named("event-adapter"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Normalize converts a raw event into the unified form. A nil event with
// a nil error means the raw event is unsupported or non-qualifying and
// should be skipped silently. Account resolution is the only side effect.
func (a *Adapter) Normalize(ctx context.Context, raw RawEvent) (*UnifiedGameEvent, error) {
	payload, kind, err := a.decodePayload(raw)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}

	account, err := a.resolver.ResolveAccount(ctx, raw.Player)
	if err != nil {
		a.logger.Debug(ctx, "player not registered, dropping event",
			logger.String("player", raw.Player),
			logger.String("type", raw.Type),
		)
		return nil, nil
	}

	return &UnifiedGameEvent{
		ID:            raw.IdempotencyKey(),
		Kind:          kind,
		Player:        raw.Player,
		TeamAccountID: account,
		Timestamp:     raw.Timestamp,
		Payload:       payload,
	}, nil
}

func (a *Adapter) decodePayload(raw RawEvent) (Payload, Kind, error) {
	switch strings.ToUpper(raw.Type) {
	case rawTypeLoot:
		p, err := decodeLoot(raw.Extra)
		return p, KindLoot, err
	case rawTypePet:
		p, err := decodePet(raw.Extra)
		return p, KindPet, err
	case rawTypeSpeedrun:
		p, err := decodeSpeedrun(raw.Extra)
		return p, KindSpeedrun, err
	case rawTypeKillCount:
		// A kill-count event carrying a duration is really a timed run.
		p, err := decodeKillCount(raw.Extra)
		if err != nil || p == nil {
			return nil, "", err
		}
		return p, KindSpeedrun, nil
	case rawTypeBAGamble:
		p, err := decodeGamble(raw.Extra)
		return p, KindGamble, err
	case rawTypeChat:
		p, err := decodeChat(raw.Extra)
		return p, KindChat, err
	case rawTypeLogin:
		return XPSnapshotPayload{Logout: false}, KindXPSnapshot, nil
	case rawTypeLogout:
		return XPSnapshotPayload{Logout: true}, KindXPSnapshot, nil
	default:
		return nil, "", nil
	}
}

type rawLootItem struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Price    int64  `json:"price_each"`
}

func decodeLoot(extra json.RawMessage) (Payload, error) {
	var body struct {
		Items []rawLootItem `json:"items"`
	}
	if err := json.Unmarshal(extra, &body); err != nil {
		return nil, fmt.Errorf("%w: loot: %v", ErrBadPayload, err)
	}
	if len(body.Items) == 0 {
		return nil, nil
	}
	p := LootPayload{Items: make([]LootItem, 0, len(body.Items))}
	for _, it := range body.Items {
		item := LootItem{Name: it.Name, Quantity: it.Quantity, Price: it.Price}
		p.Items = append(p.Items, item)
		p.TotalValue += item.Value()
	}
	return p, nil
}

func decodePet(extra json.RawMessage) (Payload, error) {
	var body struct {
		PetName string `json:"pet_name"`
	}
	if err := json.Unmarshal(extra, &body); err != nil {
		return nil, fmt.Errorf("%w: pet: %v", ErrBadPayload, err)
	}
	if body.PetName == "" {
		return nil, nil
	}
	return PetPayload{Name: body.PetName}, nil
}

func decodeSpeedrun(extra json.RawMessage) (Payload, error) {
	var body struct {
		Location string `json:"location"`
		Time     string `json:"time"`
	}
	if err := json.Unmarshal(extra, &body); err != nil {
		return nil, fmt.Errorf("%w: speedrun: %v", ErrBadPayload, err)
	}
	if body.Location == "" || body.Time == "" {
		return nil, nil
	}
	seconds, err := ParseDurationSeconds(body.Time)
	if err != nil {
		return nil, err
	}
	return SpeedrunPayload{Location: body.Location, Seconds: seconds}, nil
}

func decodeKillCount(extra json.RawMessage) (Payload, error) {
	var body struct {
		Boss string `json:"boss"`
		Time string `json:"time"`
	}
	if err := json.Unmarshal(extra, &body); err != nil {
		return nil, fmt.Errorf("%w: kill count: %v", ErrBadPayload, err)
	}
	if body.Boss == "" || body.Time == "" {
		// Plain kill counts carry no duration and do not qualify.
		return nil, nil
	}
	seconds, err := ParseDurationSeconds(body.Time)
	if err != nil {
		return nil, err
	}
	return SpeedrunPayload{Location: body.Boss, Seconds: seconds}, nil
}

func decodeGamble(extra json.RawMessage) (Payload, error) {
	var body struct {
		GambleCount int64 `json:"gamble_count"`
	}
	if err := json.Unmarshal(extra, &body); err != nil {
		return nil, fmt.Errorf("%w: gamble: %v", ErrBadPayload, err)
	}
	if body.GambleCount <= 0 {
		return nil, nil
	}
	return GamblePayload{Count: body.GambleCount}, nil
}

func decodeChat(extra json.RawMessage) (Payload, error) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(extra, &body); err != nil {
		return nil, fmt.Errorf("%w: chat: %v", ErrBadPayload, err)
	}
	if body.Message == "" {
		return nil, nil
	}
	return ChatPayload{Message: body.Message}, nil
}
