// Package oracle reads target-account balances with a fallback so that a
// flaky node never turns a status check into a hard failure.
package oracle

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/refuel/internal/clients"
	"github.com/vadiminshakov/refuel/internal/entity"
	"go.uber.org/zap"
)

// fallbackBalanceMicro is the synthetic placeholder reported when the node
// cannot be reached. Chosen above the alert band so a dead node does not
// spam low-balance notifications.
const fallbackBalanceMicro = 2 * entity.ThresholdMicro

// BalanceReader is the chain surface the oracle needs.
type BalanceReader interface {
	AccountBalance(ctx context.Context, address string) (decimal.Decimal, error)
}

// Oracle queries balances through the chain client.
type Oracle struct {
	client BalanceReader
	logger *zap.Logger
}

func New(client BalanceReader, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{client: client, logger: logger}
}

// Balance returns the account's balance in micro-units. On any query failure
// it returns a synthetic placeholder and estimated=true instead of an error.
func (o *Oracle) Balance(ctx context.Context, address string) (balance decimal.Decimal, estimated bool) {
	balance, err := o.client.AccountBalance(ctx, address)
	if err != nil {
		o.logger.Warn("balance query failed, using synthetic value",
			zap.String("address", address),
			zap.Error(err))
		return decimal.NewFromInt(fallbackBalanceMicro), true
	}
	return balance, false
}

// CheckRegistered probes whether the target account has a coin store for the
// asset. Used as a best-effort pre-check before strategy creation; callers
// treat a negative answer as a warning, never as a failure.
func (o *Oracle) CheckRegistered(ctx context.Context, address string) (bool, error) {
	_, err := o.client.AccountBalance(ctx, address)
	if errors.Is(err, clients.ErrAccountNotRegistered) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
