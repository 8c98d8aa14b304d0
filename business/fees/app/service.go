package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/business/fees/domain"
	"github.com/fd1az/depth-compare/internal/apperror"
	"github.com/fd1az/depth-compare/internal/asset"
	"github.com/fd1az/depth-compare/internal/logger"
)

// Account is the per-exchange account context used for evaluation.
type Account struct {
	Tier          string
	FeeAsset      asset.Symbol // empty: the fee is charged in the received asset
	CustomRate    *decimal.Decimal
	ExecutionType domain.ExecutionType
}

// Quote is an evaluated fee for one exchange and pair.
type Quote struct {
	Exchange      string
	Rate          decimal.Decimal
	FeeAsset      asset.Symbol
	ExecutionType domain.ExecutionType
	Result        Result
}

// FeeService combines the schedule store with configured accounts.
type FeeService struct {
	engine   *Engine
	store    ScheduleStore
	accounts map[string]Account
	logger   logger.LoggerInterface
}

// NewFeeService creates a FeeService.
func NewFeeService(engine *Engine, store ScheduleStore, accounts map[string]Account, log logger.LoggerInterface) *FeeService {
	return &FeeService{
		engine:   engine,
		store:    store,
		accounts: accounts,
		logger:   log,
	}
}

// Quote evaluates exchange's schedule for pair. received is the asset the
// order side receives; it is the fee asset when the account names none.
func (s *FeeService) Quote(ctx context.Context, exchange string, pair asset.Pair, received asset.Symbol) (*Quote, error) {
	schedule, err := s.store.Schedule(exchange)
	if err != nil {
		return nil, err
	}

	acct := s.accounts[exchange]
	feeAsset := acct.FeeAsset
	if feeAsset.IsZero() {
		feeAsset = received
	}
	execType := acct.ExecutionType
	if execType == "" {
		execType = domain.Taker
	}

	res, err := s.engine.Evaluate(schedule, EvalContext{
		Pair:          pair,
		ExecutionType: execType,
		Tier:          acct.Tier,
		FeeAsset:      feeAsset,
		CustomRate:    acct.CustomRate,
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeFeeScheduleInvalid,
			apperror.WithCause(err),
			apperror.WithContext(exchange))
	}

	s.logger.Debug(ctx, "fee evaluated",
		"exchange", exchange,
		"pair", pair.String(),
		"tier", res.Tier,
		"rate", res.Rate(execType).String(),
		"fee_asset", feeAsset.String(),
		"steps", len(res.Trail))

	return &Quote{
		Exchange:      exchange,
		Rate:          res.Rate(execType),
		FeeAsset:      feeAsset,
		ExecutionType: execType,
		Result:        res,
	}, nil
}
