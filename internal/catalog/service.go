package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-liquidacion/internal/common"
	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
)

// Source fetches option lists from the system of record.
type Source interface {
	RubroOptions(ctx context.Context, tab liquidation.ItemType) ([]RubroOption, error)
	ExporterOptions(ctx context.Context) ([]ExporterOption, error)
}

// ServiceConfig configures the option service.
type ServiceConfig struct {
	Catalog Catalog
	Source  Source
	Cache   *Cache
	Logger  zerolog.Logger
}

// Service resolves option lists from the cache, the remote source and
// finally the static catalog.
type Service struct {
	static Catalog
	source Source
	cache  *Cache
	logger zerolog.Logger
}

// NewService constructs a Service. An empty catalog falls back to Default.
func NewService(cfg ServiceConfig) *Service {
	static := cfg.Catalog
	if len(static.Rubros) == 0 && len(static.Exporters) == 0 {
		static = Default()
	}
	return &Service{static: static, source: cfg.Source, cache: cfg.Cache, logger: cfg.Logger}
}

// Static returns the configured static catalog.
func (s *Service) Static() Catalog {
	return s.static
}

// RubroOptions lists the rubros selectable on a tab.
func (s *Service) RubroOptions(ctx context.Context, tab liquidation.ItemType) ([]RubroOption, error) {
	fallback, err := s.static.RubroOptions(tab)
	if err != nil {
		return nil, common.NewAppError("UNKNOWN_TAB", fmt.Sprintf("unknown item tab %q", tab), http.StatusNotFound, err)
	}
	key := "rubros:" + string(tab)
	var cached []RubroOption
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	} else if ok {
		return cached, nil
	}
	if s.source == nil {
		return fallback, nil
	}
	remote, err := s.source.RubroOptions(ctx, tab)
	if err != nil || len(remote) == 0 {
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn().Err(err).Str("tab", string(tab)).Msg("remote rubro options unavailable, using static catalog")
		}
		return fallback, nil
	}
	if err := s.cache.SetJSON(ctx, key, remote); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return remote, nil
}

// ExporterOptions lists the selectable exporters.
func (s *Service) ExporterOptions(ctx context.Context) ([]ExporterOption, error) {
	const key = "exporters"
	var cached []ExporterOption
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	} else if ok {
		return cached, nil
	}
	fallback := append([]ExporterOption(nil), s.static.Exporters...)
	if s.source == nil {
		return fallback, nil
	}
	remote, err := s.source.ExporterOptions(ctx)
	if err != nil || len(remote) == 0 {
		if err != nil {
			s.logger.Warn().Err(err).Msg("remote exporter options unavailable, using static catalog")
		}
		return fallback, nil
	}
	if err := s.cache.SetJSON(ctx, key, remote); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return remote, nil
}

// Snapshot resolves every option list into one catalog.
func (s *Service) Snapshot(ctx context.Context) (Catalog, error) {
	out := Catalog{Rubros: make(map[liquidation.ItemType][]RubroOption, len(liquidation.ItemTypes))}
	for _, tab := range liquidation.ItemTypes {
		opts, err := s.RubroOptions(ctx, tab)
		if err != nil {
			return Catalog{}, err
		}
		out.Rubros[tab] = opts
	}
	exporters, err := s.ExporterOptions(ctx)
	if err != nil {
		return Catalog{}, err
	}
	out.Exporters = exporters
	return out, nil
}

// Refresh drops cached remote lists so the next read refetches them.
func (s *Service) Refresh(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}
