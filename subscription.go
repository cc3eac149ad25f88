package streamfeed

import (
	"fmt"
	"strings"
)

// Channel type tags understood by the feed.
const (
	ChannelAllMids      = "allMids"
	ChannelTrades       = "trades"
	ChannelL2Book       = "l2Book"
	ChannelBBO          = "bbo"
	ChannelCandle       = "candle"
	ChannelUserEvents   = "userEvents"
	ChannelUserFills    = "userFills"
	ChannelOrderUpdates = "orderUpdates"
)

// Subscription describes a data channel: a type tag plus whatever
// parameters that type requires. Two subscriptions are equivalent when
// they derive the same canonical key.
type Subscription struct {
	Type     string `json:"type"`
	Symbol   string `json:"symbol,omitempty"`
	Interval string `json:"interval,omitempty"`
	User     string `json:"user,omitempty"`
}

// channelKind says which parameters a channel type's canonical key embeds.
type channelKind int

const (
	kindGlobal channelKind = iota
	kindSymbol
	kindSymbolInterval
	kindUser
)

var channelKinds = map[string]channelKind{
	ChannelAllMids:      kindGlobal,
	ChannelTrades:       kindSymbol,
	ChannelL2Book:       kindSymbol,
	ChannelBBO:          kindSymbol,
	ChannelCandle:       kindSymbolInterval,
	ChannelUserEvents:   kindUser,
	ChannelUserFills:    kindUser,
	ChannelOrderUpdates: kindUser,
}

// Key derives the canonical channel key for a subscription. The same
// derivation serves registration and inbound routing, so both sides
// always agree on the key. Symbols and user keys are case-insensitive
// and lower-cased; intervals are taken as-is.
func (s Subscription) Key() (string, error) {
	kind, ok := channelKinds[s.Type]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownChannel, s.Type)
	}

	switch kind {
	case kindGlobal:
		return s.Type, nil

	case kindSymbol:
		if s.Symbol == "" {
			return "", fmt.Errorf("channel %q requires a symbol", s.Type)
		}
		return s.Type + ":" + strings.ToLower(s.Symbol), nil

	case kindSymbolInterval:
		if s.Symbol == "" {
			return "", fmt.Errorf("channel %q requires a symbol", s.Type)
		}
		if s.Interval == "" {
			return "", fmt.Errorf("channel %q requires an interval", s.Type)
		}
		return s.Type + ":" + strings.ToLower(s.Symbol) + ":" + s.Interval, nil

	default: // kindUser
		if s.User == "" {
			return "", fmt.Errorf("channel %q requires a user key", s.Type)
		}
		return s.Type + ":" + strings.ToLower(s.User), nil
	}
}
