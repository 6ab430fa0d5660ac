// Package functions invokes named backend functions over HTTP or gRPC.
//
// Transport failures are tagged at their origin with an explicit retryable
// flag (see retry.NewError) so callers wrapping Invoke in retry.Do do not
// depend on message matching for them.
package functions

import (
	"context"
	"fmt"
	"time"
)

// Invoker calls a named backend function with a JSON-serializable payload and
// decodes the response into out. out may be nil.
type Invoker interface {
	Invoke(ctx context.Context, name string, payload any, out any) error
	Close() error
}

// Transport selects the Invoker implementation.
type Transport string

const (
	TransportHTTP Transport = "http"
	TransportGRPC Transport = "grpc"
)

// Config holds remote function settings.
type Config struct {
	Transport  Transport     `yaml:"transport"   env:"TRANSPORT"`
	BaseURL    string        `yaml:"base_url"    env:"BASE_URL"`
	GRPCTarget string        `yaml:"grpc_target" env:"GRPC_TARGET"`
	APIKey     string        `yaml:"api_key"     env:"API_KEY"`
	Timeout    time.Duration `yaml:"timeout"     env:"TIMEOUT"`
}

// New creates the Invoker selected by cfg.Transport.
func New(cfg Config) (Invoker, error) {
	switch cfg.Transport {
	case TransportHTTP, "":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("functions: base_url is required for http transport")
		}
		return NewHTTPInvoker(cfg.BaseURL, cfg.APIKey, cfg.Timeout), nil
	case TransportGRPC:
		if cfg.GRPCTarget == "" {
			return nil, fmt.Errorf("functions: grpc_target is required for grpc transport")
		}
		return NewGRPCInvoker(cfg.GRPCTarget, cfg.APIKey)
	default:
		return nil, fmt.Errorf("functions: unknown transport %q", cfg.Transport)
	}
}
