package platform

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/sig-0/p2prates/market/types"
)

var (
	errInvalidPlatform    = errors.New("invalid platform")
	errDuplicatePlatform  = errors.New("platform already registered")
	ErrNoPlatforms        = errors.New("no platforms registered")
	ErrPlatformNotFound   = errors.New("platform not found")
	ErrAllPlatformsFailed = errors.New("all platforms failed")
)

// DefaultResolver resolves the configured default platform code at read
// time, so configuration changes take effect without a restart
type DefaultResolver func(ctx context.Context) (string, error)

// Registry holds all registered platform adapters. It is constructed once
// at process start and passed by reference into the engine and refresh job
type Registry struct {
	logger *slog.Logger

	resolveDefault DefaultResolver

	platforms map[string]Platform
	order     []string // registration order, drives fallback
}

type RegistryOption func(r *Registry)

// WithLogger specifies the logger for the registry
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithDefaultResolver specifies the default-platform code resolver
func WithDefaultResolver(fn DefaultResolver) RegistryOption {
	return func(r *Registry) {
		r.resolveDefault = fn
	}
}

// NewRegistry creates a new platform registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		platforms: make(map[string]Platform),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register registers a new platform adapter
func (r *Registry) Register(p Platform) error {
	if p == nil || p.Code() == "" {
		return errInvalidPlatform
	}

	if _, ok := r.platforms[p.Code()]; ok {
		return errDuplicatePlatform
	}

	r.platforms[p.Code()] = p
	r.order = append(r.order, p.Code())

	r.logger.Info(
		"registered platform",
		"code", p.Code(),
		"name", p.Name(),
	)

	return nil
}

// Get fetches the platform for the given code, if registered
func (r *Registry) Get(code string) (Platform, error) {
	p, ok := r.platforms[code]
	if !ok {
		return nil, ErrPlatformNotFound
	}

	return p, nil
}

// All returns the registered platforms, in registration order
func (r *Registry) All() []Platform {
	out := make([]Platform, 0, len(r.order))

	for _, code := range r.order {
		out = append(out, r.platforms[code])
	}

	return out
}

// Default resolves the default platform. The configured code is read on
// every call; when it is missing or not registered, the first registered
// platform is used
func (r *Registry) Default(ctx context.Context) (Platform, error) {
	if len(r.order) == 0 {
		return nil, ErrNoPlatforms
	}

	if r.resolveDefault != nil {
		code, err := r.resolveDefault(ctx)
		if err == nil {
			if p, ok := r.platforms[code]; ok {
				return p, nil
			}
		}
	}

	return r.platforms[r.order[0]], nil
}

// FetchWithFallback fetches offers from the platform with the given code,
// or from the default platform when the code is empty. When no platform was
// explicitly requested and the fetch fails, the remaining platforms are
// tried in registration order; the first non-error result wins, and an
// empty offer list counts as success
func (r *Registry) FetchWithFallback(
	ctx context.Context,
	code string,
	req OfferRequest,
) ([]*types.Offer, error) {
	var (
		primary Platform
		err     error
	)

	if code != "" {
		primary, err = r.Get(code)
	} else {
		primary, err = r.Default(ctx)
	}

	if err != nil {
		return nil, err
	}

	toTry := []Platform{primary}

	// Fallback only applies when no platform was explicitly requested
	if code == "" {
		for _, p := range r.All() {
			if p.Code() != primary.Code() {
				toTry = append(toTry, p)
			}
		}
	}

	for _, p := range toTry {
		offers, fetchErr := p.FetchOffers(ctx, req)
		if fetchErr != nil {
			r.logger.Warn(
				"platform fetch failed",
				"code", p.Code(),
				"fiat", req.Fiat,
				"side", req.Side,
				"err", fetchErr,
			)

			continue
		}

		return offers, nil
	}

	return nil, ErrAllPlatformsFailed
}
