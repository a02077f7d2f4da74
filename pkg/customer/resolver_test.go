package customer

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func fixed(res *Resolution, err error) Strategy {
	return Strategy{
		Name: "fixed",
		Lookup: func(ctx context.Context, phone string) (*Resolution, error) {
			return res, err
		},
	}
}

func TestResolveRankOrder(t *testing.T) {
	first := &Resolution{Status: StatusFound, CustomerID: "c1", Name: "Ana López", Tier: "VIP"}
	second := &Resolution{Status: StatusFound, CustomerID: "c2", Name: "Otra Persona"}

	r := NewResolver([]Strategy{fixed(first, nil), fixed(second, nil)}, zap.NewNop())

	got := r.Resolve(context.Background(), "+5215512345678")
	if got.CustomerID != "c1" {
		t.Errorf("CustomerID = %q, want first-ranked strategy to win", got.CustomerID)
	}
	if got.Status != StatusFound || got.Name != "Ana López" {
		t.Errorf("resolution = %+v", got)
	}
}

func TestResolveFallsThroughMisses(t *testing.T) {
	partial := &Resolution{Status: StatusPartial, Name: "Luis"}

	r := NewResolver([]Strategy{
		fixed(nil, nil), // miss
		fixed(nil, nil), // miss
		fixed(partial, nil),
	}, zap.NewNop())

	got := r.Resolve(context.Background(), "+5215512345678")
	if got.Status != StatusPartial || got.Name != "Luis" {
		t.Errorf("resolution = %+v", got)
	}
}

func TestResolveSkipsFailingStrategy(t *testing.T) {
	found := &Resolution{Status: StatusFound, CustomerID: "c9"}

	r := NewResolver([]Strategy{
		fixed(nil, errors.New("mongo timeout")),
		fixed(found, nil),
	}, zap.NewNop())

	got := r.Resolve(context.Background(), "+5215512345678")
	if got.Status != StatusFound || got.CustomerID != "c9" {
		t.Errorf("failing strategy should be skipped, got %+v", got)
	}
}

func TestResolveNotFound(t *testing.T) {
	r := NewResolver([]Strategy{fixed(nil, nil)}, zap.NewNop())

	got := r.Resolve(context.Background(), "+5215512345678")
	if got.Status != StatusNotFound {
		t.Errorf("Status = %q, want not_found", got.Status)
	}
}

func TestResolveEmptyPhone(t *testing.T) {
	called := false
	r := NewResolver([]Strategy{{
		Name: "never",
		Lookup: func(ctx context.Context, phone string) (*Resolution, error) {
			called = true
			return nil, nil
		},
	}}, zap.NewNop())

	got := r.Resolve(context.Background(), "")
	if got.Status != StatusNotFound {
		t.Errorf("Status = %q", got.Status)
	}
	if called {
		t.Error("strategies must not run without a phone number")
	}
}
