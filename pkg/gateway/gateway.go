// Package gateway provides the public API for embedding the event gateway.
// This is the stable API for external consumers.
package gateway

import (
	"github.com/tjfontaine/polyglot-event-gateway/internal/channel"
	"github.com/tjfontaine/polyglot-event-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-event-gateway/internal/runtime"
)

// Gateway hosts the math application over HTTP with exchange recording,
// metrics and an admin API.
// See internal/runtime.Gateway for full documentation.
type Gateway = runtime.Gateway

// Scope describes a request passed to Gateway.Dispatch.
type Scope = domain.Scope

// Header is one response header.
type Header = domain.Header

// Response is the collected result of Gateway.Dispatch.
type Response = channel.Response

// Scope types.
const (
	ScopeHTTP      = domain.ScopeHTTP
	ScopeWebSocket = domain.ScopeWebSocket
	ScopeLifespan  = domain.ScopeLifespan
)

// Option is a functional option for configuring a Gateway.
type Option = runtime.Option

// New creates a new Gateway with the given options.
// Example:
//
//	gw, err := gateway.New(
//	    gateway.WithFileConfig("config.yaml"),
//	    gateway.WithSQLite("./data/gateway.db"),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithFileConfig     = runtime.WithFileConfig
	WithConfigProvider = runtime.WithConfigProvider

	// Storage
	WithSQLite          = runtime.WithSQLite
	WithPostgres        = runtime.WithPostgres
	WithMemoryStorage   = runtime.WithMemoryStorage
	WithoutStorage      = runtime.WithoutStorage
	WithStorageProvider = runtime.WithStorageProvider

	// Advanced options
	WithLogger         = runtime.WithLogger
	WithTracerProvider = runtime.WithTracerProvider
	WithListener       = runtime.WithListener
)
