package streamfeed

import (
	"errors"
	"testing"
)

func TestSubscriptionKey(t *testing.T) {
	tests := []struct {
		name string
		sub  Subscription
		want string
	}{
		{"global", Subscription{Type: ChannelAllMids}, "allMids"},
		{"per symbol", Subscription{Type: ChannelTrades, Symbol: "BTC"}, "trades:btc"},
		{"symbol already lower", Subscription{Type: ChannelTrades, Symbol: "btc"}, "trades:btc"},
		{"book", Subscription{Type: ChannelL2Book, Symbol: "Eth"}, "l2Book:eth"},
		{"candle", Subscription{Type: ChannelCandle, Symbol: "BTC", Interval: "1m"}, "candle:btc:1m"},
		{"user", Subscription{Type: ChannelUserEvents, User: "0xABCD"}, "userEvents:0xabcd"},
		{"fills", Subscription{Type: ChannelUserFills, User: "0xabcd"}, "userFills:0xabcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.sub.Key()
			if err != nil {
				t.Fatalf("Key() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubscriptionKey_Equivalence(t *testing.T) {
	a, err := Subscription{Type: ChannelTrades, Symbol: "BTC"}.Key()
	if err != nil {
		t.Fatal(err)
	}
	b, err := Subscription{Type: ChannelTrades, Symbol: "btc"}.Key()
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("case variants should normalize to one key: %q vs %q", a, b)
	}
}

func TestSubscriptionKey_Errors(t *testing.T) {
	if _, err := (Subscription{Type: "weather"}).Key(); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("unknown type: got %v, want ErrUnknownChannel", err)
	}
	if _, err := (Subscription{Type: ChannelTrades}).Key(); err == nil {
		t.Error("trades without symbol should be rejected")
	}
	if _, err := (Subscription{Type: ChannelCandle, Symbol: "btc"}).Key(); err == nil {
		t.Error("candle without interval should be rejected")
	}
	if _, err := (Subscription{Type: ChannelUserEvents}).Key(); err == nil {
		t.Error("user channel without user key should be rejected")
	}
}
