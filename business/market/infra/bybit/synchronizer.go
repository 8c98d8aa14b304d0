package bybit

import (
	"github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/business/market/infra/syncer"
	"github.com/fd1az/depth-compare/internal/config"
	"github.com/fd1az/depth-compare/internal/logger"
)

// NewSynchronizer builds the Bybit synchronizer. Every push carries a single
// update id u, so the sequence policy runs with first == last. The topic
// re-baselines with a fresh snapshot on subscription, hence the
// unsubscribe/subscribe cycle on resync.
func NewSynchronizer(cfg config.ExchangeConfig, log logger.LoggerInterface) (*syncer.Venue, error) {
	rest, err := NewRESTClient(RESTConfig{
		BaseURL:       cfg.RESTURL,
		RatePerMinute: cfg.RESTRatePerMinute,
	}, log)
	if err != nil {
		return nil, err
	}

	engineCfg := syncer.ConfigFrom(config.ExchangeBybit, cfg, domain.SequencePolicy{}, true)
	return syncer.NewVenue(engineCfg, syncer.StreamConfig(config.ExchangeBybit, cfg), newCodec(cfg.SnapshotDepth), rest, log)
}
