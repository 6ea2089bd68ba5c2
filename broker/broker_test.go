package broker

import (
	"context"
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Type
		ok   bool
	}{
		{"ZERODHA", Zerodha, true},
		{"zerodha", Zerodha, true},
		{" Upstox ", Upstox, true},
		{"angel_one", AngelOne, true},
		{"ICICI_DIRECT", ICICIDirect, true},
		{"robinhood", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, ok := Parse(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Parse(%q) = %q, %v", tc.in, got, ok)
		}
	}
}

func TestLower(t *testing.T) {
	if got := Zerodha.Lower(); got != "zerodha" {
		t.Fatalf("Lower() = %q", got)
	}
	if got := AngelOne.Lower(); got != "angel_one" {
		t.Fatalf("Lower() = %q", got)
	}
}

type singleBrokerAdapter struct {
	broker Type
}

func (a singleBrokerAdapter) Supports(b Type) bool { return b == a.broker }

func (a singleBrokerAdapter) Authenticate(context.Context, AuthRequest) (AuthResult, error) {
	return AuthResult{Success: true, Broker: a.broker}, nil
}

func (a singleBrokerAdapter) RefreshToken(context.Context, string) (AuthResult, error) {
	return AuthResult{Success: true, Broker: a.broker}, nil
}

func TestRegistryFind(t *testing.T) {
	registry := NewRegistry(
		singleBrokerAdapter{broker: Zerodha},
		singleBrokerAdapter{broker: Upstox},
	)

	adapter, err := registry.Find(Upstox)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if !adapter.Supports(Upstox) {
		t.Fatal("wrong adapter returned")
	}

	if _, err := registry.Find(AngelOne); !errors.Is(err, ErrNoAdapter) {
		t.Fatalf("unsupported broker: %v", err)
	}
}
