package binance

import (
	"github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/business/market/infra/syncer"
	"github.com/fd1az/depth-compare/internal/config"
	"github.com/fd1az/depth-compare/internal/logger"
)

// NewSynchronizer builds the Binance synchronizer. Diffs carry a U..u update
// range and the REST snapshot a lastUpdateId, so the sequence policy applies
// and a gap is healed by a fresh snapshot alone.
func NewSynchronizer(cfg config.ExchangeConfig, log logger.LoggerInterface) (*syncer.Venue, error) {
	rest, err := NewRESTClient(RESTConfig{
		BaseURL:       cfg.RESTURL,
		RatePerMinute: cfg.RESTRatePerMinute,
	}, log)
	if err != nil {
		return nil, err
	}

	engineCfg := syncer.ConfigFrom(config.ExchangeBinance, cfg, domain.SequencePolicy{}, false)
	return syncer.NewVenue(engineCfg, syncer.StreamConfig(config.ExchangeBinance, cfg), codec{}, rest, log)
}
