package common

import (
	"github.com/facundoguellutn/stoodeochat/internal/config"
	pkgHTTP "github.com/facundoguellutn/stoodeochat/pkg/http"
	"go.uber.org/zap"
)

// NewBaseConnector builds a provider connector from cfg. Options in extra are
// applied last and win over the config values.
func NewBaseConnector(cfg config.HTTPClientConfig, logger *zap.Logger, extra ...pkgHTTP.HttpOpts) *pkgHTTP.Connector {
	connCfg := &pkgHTTP.ConnectorConfig{
		Logger:  logger,
		BaseURL: cfg.Url,
	}

	opts := []pkgHTTP.HttpOpts{
		pkgHTTP.WithRequestTimeout(cfg.RequestTimeout),
		pkgHTTP.WithConnClientTimeout(cfg.ConnTimeout),
		pkgHTTP.WithClientKeepAlive(cfg.KeepAlive),
		pkgHTTP.WithIdleConnTimeout(cfg.IdleConnTimeout),
		pkgHTTP.WithResponseHeaderTimeout(cfg.ResponseHeaderTimeout),
		pkgHTTP.WithUserAgent(userAgent),
		pkgHTTP.WithRequestLogging(),
	}
	if cfg.APIKeyHeader != "" {
		opts = append(opts, pkgHTTP.WithAPIKeyHeader(cfg.APIKeyHeader, cfg.Token))
	} else {
		opts = append(opts, pkgHTTP.WithAuthToken(cfg.Token))
	}

	return pkgHTTP.NewConnector(connCfg, append(opts, extra...)...)
}

const userAgent = "stoodeochat/1.0"
