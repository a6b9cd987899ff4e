package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// MultiClient routes requests to a provider. A model mapped with AddModel
// goes to its provider; every other model goes to the fallback.
type MultiClient struct {
	clients  map[string]Client // provider name → client
	models   map[string]string // model name → provider name
	fallback string            // provider used for unmapped models
}

// NewMultiClient creates a router whose unmapped models go to the
// provider named fallback.
func NewMultiClient(fallback string) *MultiClient {
	return &MultiClient{
		clients:  make(map[string]Client),
		models:   make(map[string]string),
		fallback: fallback,
	}
}

// AddProvider registers a client for a provider name.
func (m *MultiClient) AddProvider(name string, client Client) {
	m.clients[name] = client
}

// AddModel maps a model name to a provider.
func (m *MultiClient) AddModel(modelName, providerName string) {
	m.models[modelName] = providerName
}

// Providers returns the registered provider names, sorted.
func (m *MultiClient) Providers() []string {
	names := make([]string, 0, len(m.clients))
	for n := range m.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ProviderFor returns the provider name a model routes to.
func (m *MultiClient) ProviderFor(model string) string {
	if provider, ok := m.models[model]; ok {
		return provider
	}
	return m.fallback
}

func (m *MultiClient) clientFor(model string) (Client, error) {
	provider := m.ProviderFor(model)
	client, ok := m.clients[provider]
	if !ok {
		return nil, fmt.Errorf("no provider configured for model %q (provider %q)", model, provider)
	}
	return client, nil
}

// Chat sends a request to the provider for req.Model.
func (m *MultiClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	client, err := m.clientFor(req.Model)
	if err != nil {
		return nil, err
	}
	return client.Chat(ctx, req)
}

// Ping checks every registered provider and joins the failures.
func (m *MultiClient) Ping(ctx context.Context) error {
	if len(m.clients) == 0 {
		return errors.New("no providers configured")
	}
	var errs []error
	for _, name := range m.Providers() {
		if err := m.clients[name].Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
