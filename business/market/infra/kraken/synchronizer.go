package kraken

import (
	"github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/business/market/infra/syncer"
	"github.com/fd1az/depth-compare/internal/config"
	"github.com/fd1az/depth-compare/internal/logger"
)

// NewSynchronizer builds the Kraken synchronizer. Updates are stamped but not
// sequenced, so the book is last-write-wins: older updates are dropped and
// never count as a gap.
func NewSynchronizer(cfg config.ExchangeConfig, log logger.LoggerInterface) (*syncer.Venue, error) {
	rest, err := NewRESTClient(RESTConfig{
		BaseURL:       cfg.RESTURL,
		RatePerMinute: cfg.RESTRatePerMinute,
	}, log)
	if err != nil {
		return nil, err
	}

	engineCfg := syncer.ConfigFrom(config.ExchangeKraken, cfg, domain.TimestampPolicy{Strict: false}, true)
	return syncer.NewVenue(engineCfg, syncer.StreamConfig(config.ExchangeKraken, cfg), newCodec(cfg.SnapshotDepth), rest, log)
}
