package okx

import (
	"github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/business/market/infra/syncer"
	"github.com/fd1az/depth-compare/internal/config"
	"github.com/fd1az/depth-compare/internal/logger"
)

// NewSynchronizer builds the OKX synchronizer. Every update names the seqId
// it follows, so a broken link is a gap, and the channel is resubscribed to
// obtain a fresh snapshot push.
func NewSynchronizer(cfg config.ExchangeConfig, log logger.LoggerInterface) (*syncer.Venue, error) {
	rest, err := NewRESTClient(RESTConfig{
		BaseURL:       cfg.RESTURL,
		RatePerMinute: cfg.RESTRatePerMinute,
	}, log)
	if err != nil {
		return nil, err
	}

	engineCfg := syncer.ConfigFrom(config.ExchangeOKX, cfg, domain.LinkedPolicy{}, true)
	return syncer.NewVenue(engineCfg, syncer.StreamConfig(config.ExchangeOKX, cfg), codec{}, rest, log)
}
