package api

import "context"

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer serves store until ctx is cancelled
	StartServer(ctx context.Context, store IWearLevelStore, wear WearReporter, config ServerConfig) error
}

// ServerFactory defines the interface for creating server starters
type ServerFactory interface {
	CreateServerStarter() ServerStarter
}

// DefaultServerFactory is the default implementation of ServerFactory
type DefaultServerFactory struct{}

// NewServerFactory creates a new server factory
func NewServerFactory() ServerFactory {
	return &DefaultServerFactory{}
}

// CreateServerStarter creates a server starter
func (f *DefaultServerFactory) CreateServerStarter() ServerStarter {
	return &DefaultServerStarter{}
}

// DefaultServerStarter is the default implementation of ServerStarter
type DefaultServerStarter struct{}

// StartServer starts the API server with the given configuration
func (s *DefaultServerStarter) StartServer(ctx context.Context, store IWearLevelStore, wear WearReporter, config ServerConfig) error {
	return StartServer(ctx, store, wear, config)
}
