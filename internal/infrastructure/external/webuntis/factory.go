package webuntis

import (
	"context"
	"fmt"
	"net/http"

	"github.com/roosterhub/untis-connector/config"
	"github.com/roosterhub/untis-connector/internal/infrastructure/jsonrpc"
	"github.com/roosterhub/untis-connector/pkg/logger"
)

// ClientResult is a new client together with the settings it was built from.
type ClientResult struct {
	Client     *Client
	SchoolName string
	UserName   string
	Password   string
}

// Factory builds clients for configured schools.
type Factory struct {
	config     config.UntisConfig
	httpClient *http.Client
	log        *logger.Logger
}

// FactoryOption customizes a Factory.
type FactoryOption func(*Factory)

// WithHTTPClient shares one http.Client across all created clients.
func WithHTTPClient(c *http.Client) FactoryOption {
	return func(f *Factory) { f.httpClient = c }
}

func WithLogger(l *logger.Logger) FactoryOption {
	return func(f *Factory) { f.log = l }
}

// NewFactory creates a new Factory.
func NewFactory(cfg config.UntisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{config: cfg, log: logger.Nop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SchoolName returns the configured name of the school a school or
// institute name refers to.
func (f *Factory) SchoolName(schoolOrInstitute string) (string, error) {
	settings, err := f.config.ResolveSchool(schoolOrInstitute)
	if err != nil {
		return "", err
	}
	return settings.Name, nil
}

// CreateClient builds an unauthenticated client for a school or institute.
func (f *Factory) CreateClient(schoolOrInstitute string) (*ClientResult, error) {
	settings, err := f.config.ResolveSchool(schoolOrInstitute)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	clientConfig := DefaultClientConfig(settings.Name)
	clientConfig.ClientName = f.config.ClientName
	clientConfig.Logger = f.log

	return &ClientResult{
		Client:     NewClient(jsonrpc.NewClient(f.rpcConfig(settings)), clientConfig),
		SchoolName: settings.Name,
		UserName:   settings.UserName,
		Password:   settings.Password,
	}, nil
}

func (f *Factory) rpcConfig(settings config.SchoolSettings) jsonrpc.Config {
	rpcConfig := jsonrpc.DefaultConfig(settings.ServiceURL)
	rpcConfig.Timeout = f.config.RequestTimeout
	// one first attempt plus the configured retries
	rpcConfig.MaxAttempts = max(f.config.MaxRetries, 0) + 1
	rpcConfig.RetryBaseDelay = f.config.RetryBaseDelay
	rpcConfig.RetryMaxDelay = f.config.RetryMaxDelay
	rpcConfig.BreakerThreshold = f.config.CircuitBreakerThreshold
	rpcConfig.BreakerTimeout = f.config.CircuitBreakerTimeout
	rpcConfig.HTTPClient = f.httpClient
	rpcConfig.Logger = f.log.With(logger.School(settings.Name))
	return rpcConfig
}

// CreateClientAndLogIn builds a client and logs in with the resolved
// credentials.
func (f *Factory) CreateClientAndLogIn(ctx context.Context, schoolOrInstitute string) (*ClientResult, error) {
	result, err := f.CreateClient(schoolOrInstitute)
	if err != nil {
		return nil, err
	}
	if err := result.Client.LogIn(ctx, result.UserName, result.Password); err != nil {
		return nil, fmt.Errorf("log in to %s: %w", result.SchoolName, err)
	}
	return result, nil
}
