package payment

import (
	"context"

	"github.com/rs/zerolog"
)

// Processor charges through a gateway and deduplicates by idempotency key.
type Processor struct {
	gateway Gateway
	store   IdempotencyStore
	logger  *zerolog.Logger
}

func NewProcessor(gateway Gateway, store IdempotencyStore, logger *zerolog.Logger) *Processor {
	return &Processor{gateway: gateway, store: store, logger: logger}
}

// Process runs the charge. replayed is true when the result came from an
// earlier attempt with the same key. Requests without a key are never
// deduplicated.
func (p *Processor) Process(ctx context.Context, req ChargeRequest) (result *ChargeResult, replayed bool, err error) {
	if req.IdempotencyKey == "" || p.store == nil {
		result, err = p.gateway.Charge(ctx, req)
		return result, false, err
	}

	stored, err := p.store.Reserve(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}
	if stored != nil {
		p.logger.Info().Str("idempotency_key", req.IdempotencyKey).Str("transaction_id", stored.TransactionID).Msg("payment replayed")
		return stored, true, nil
	}

	result, err = p.gateway.Charge(ctx, req)
	if err != nil {
		if mErr := p.store.MarkFailure(context.WithoutCancel(ctx), req.IdempotencyKey); mErr != nil {
			p.logger.Warn().Err(mErr).Str("idempotency_key", req.IdempotencyKey).Msg("release idempotency key")
		}
		return nil, false, err
	}

	if mErr := p.store.MarkSuccess(context.WithoutCancel(ctx), req.IdempotencyKey, result); mErr != nil {
		p.logger.Warn().Err(mErr).Str("idempotency_key", req.IdempotencyKey).Msg("store payment result")
	}
	return result, false, nil
}
