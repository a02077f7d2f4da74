package customer

import (
	"context"

	"go.uber.org/zap"
)

// Status is the outcome class of a resolution. Callers branch on this,
// never on which optional fields happen to be set.
type Status string

const (
	StatusFound    Status = "found"     // full customer record
	StatusPartial  Status = "partial"   // identity hints only (e.g. a chat contact)
	StatusNotFound Status = "not_found" // nothing known about the caller
)

// Resolution is what the engine knows about the caller
type Resolution struct {
	Status         Status
	CustomerID     string
	Name           string
	Tier           string
	Tags           []string
	ConversationID string
}

// Strategy is one ranked identity lookup. Returning (nil, nil) means
// "no answer here, try the next one".
type Strategy struct {
	Name   string
	Lookup func(ctx context.Context, phone string) (*Resolution, error)
}

// Resolver tries strategies in rank order and returns the first hit.
// A failing strategy is skipped, not fatal: worse identity beats a
// dead call.
type Resolver struct {
	strategies []Strategy
	logger     *zap.Logger
}

func NewResolver(strategies []Strategy, logger *zap.Logger) *Resolver {
	return &Resolver{
		strategies: strategies,
		logger:     logger,
	}
}

// Resolve identifies the caller by phone number
func (r *Resolver) Resolve(ctx context.Context, phone string) Resolution {
	if phone == "" {
		return Resolution{Status: StatusNotFound}
	}

	for _, strategy := range r.strategies {
		res, err := strategy.Lookup(ctx, phone)
		if err != nil {
			r.logger.Warn("Resolver strategy failed",
				zap.String("strategy", strategy.Name),
				zap.Error(err),
			)
			continue
		}
		if res != nil {
			r.logger.Debug("Caller resolved",
				zap.String("strategy", strategy.Name),
				zap.String("status", string(res.Status)),
			)
			return *res
		}
	}

	return Resolution{Status: StatusNotFound}
}
