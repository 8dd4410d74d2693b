package builder

import (
	"fmt"

	"github.com/facundoguellutn/stoodeochat/internal/config"
	"github.com/facundoguellutn/stoodeochat/internal/pkg/formatter"
	"github.com/unidoc/unioffice/common/license"
	"go.uber.org/zap"
)

// setupLicenses applies the UniDoc metered key used by DOCX export.
func setupLicenses(cfg *config.Config, logger *zap.Logger) error {
	if cfg.UnidocLicenseKey == "" {
		logger.Warn("UNIDOC_LICENSE_API_KEY not set, DOCX export disabled")
		return nil
	}

	if err := license.SetMeteredKey(cfg.UnidocLicenseKey); err != nil {
		return fmt.Errorf("set unidoc metered key: %w", err)
	}
	logger.Info("UniDoc license applied, DOCX export enabled")

	return nil
}

func formatterOptions(cfg *config.Config) []formatter.FactoryOption {
	if cfg.UnidocLicenseKey == "" {
		return nil
	}
	return []formatter.FactoryOption{formatter.WithDOCX()}
}
