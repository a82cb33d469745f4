package inject

import (
	"context"
	"strconv"
	"testing"

	"github.com/HerbHall/mediatheme/internal/clientconfig"
)

// nopStore is a ConfigStore that keeps nothing.
type nopStore struct{}

func (*nopStore) Load(context.Context) clientconfig.Config { return clientconfig.Defaults() }

func (*nopStore) Save(_ context.Context, cfg clientconfig.Config) (clientconfig.Config, error) {
	return cfg, nil
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	if err != nil {
		t.Fatalf("Atoi(%q): %v", s, err)
	}
	return n
}
