package server

import (
	"log/slog"

	"github.com/sig-0/p2prates/server/config"
	"github.com/sig-0/p2prates/snapshot"
)

type Option func(s *Server)

// WithLogger specifies the logger for the server
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithConfig specifies the config for the server
func WithConfig(c *config.Config) Option {
	return func(s *Server) {
		s.config = c
	}
}

// WithRefresher enables the manual refresh trigger endpoint
func WithRefresher(r Refresher) Option {
	return func(s *Server) {
		s.refresher = r
	}
}

// WithStore enables the materialized best-rate endpoints
func WithStore(store snapshot.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}
