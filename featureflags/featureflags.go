package featureflags

import (
	"sync/atomic"

	"github.com/Unleash/unleash-client-go/v3"
	"github.com/rs/zerolog/log"

	"gitlab.com/paramountdax-exchange/genealogy_api/config"
)

var initialized int32

type listener struct{}

// OnError godoc
func (listener) OnError(err error) {
	log.Error().Err(err).Str("lib", "unleash").Msg("Feature flags error")
}

// OnWarning godoc
func (listener) OnWarning(err error) {
	log.Warn().Err(err).Str("lib", "unleash").Msg("Feature flags warning")
}

// OnReady godoc
func (listener) OnReady() {
	log.Info().Str("lib", "unleash").Msg("Feature flags ready")
}

// Initialize the unleash client. Without an url every flag falls back to enabled.
func Initialize(cfg config.UnleashConfig) error {
	if cfg.URL == "" {
		log.Warn().Str("lib", "unleash").Msg("Feature flags not configured, using fallback values")
		return nil
	}
	err := unleash.Initialize(
		unleash.WithListener(listener{}),
		unleash.WithAppName(cfg.AppName),
		unleash.WithInstanceId(cfg.InstanceID),
		unleash.WithUrl(cfg.URL),
	)
	if err != nil {
		return err
	}
	atomic.StoreInt32(&initialized, 1)
	return nil
}

// IsEnabled checks the feature, defaulting to enabled when unleash is unavailable
func IsEnabled(feature string, options ...unleash.FeatureOption) bool {
	if atomic.LoadInt32(&initialized) == 0 {
		return true
	}
	return unleash.IsEnabled(feature, append(options, unleash.WithFallback(true))...)
}

// Close godoc
func Close() {
	if atomic.LoadInt32(&initialized) == 0 {
		return
	}
	if err := unleash.Close(); err != nil {
		log.Error().Err(err).Str("lib", "unleash").Msg("Unable to close feature flags client")
	}
}
