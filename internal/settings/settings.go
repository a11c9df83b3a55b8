package settings

import (
	"context"
	"fmt"
	"strings"

	"newsplugin/internal/transport"
)

// Option keys shared with the rest of the system.
const (
	KeyAPIKey    = "news_plugin_api_key"
	KeyURLMethod = "news_plugin_url_method"
)

// OptionStore is the global key-value configuration store.
type OptionStore interface {
	GetOption(ctx context.Context, key string) (string, bool, error)
	SetOption(ctx context.Context, key, value string) error
}

// Settings is the per-request view of the persisted configuration.
type Settings struct {
	APIKey string
	Method transport.Method
}

// Active reports whether an account key is configured.
func (s Settings) Active() bool { return strings.TrimSpace(s.APIKey) != "" }

// Provider resolves Settings from the option store.
type Provider struct {
	Store OptionStore
}

func NewProvider(store OptionStore) *Provider {
	return &Provider{Store: store}
}

// Load reads the account key and the preferred transport method.
func (p *Provider) Load(ctx context.Context) (Settings, error) {
	key, _, err := p.Store.GetOption(ctx, KeyAPIKey)
	if err != nil {
		return Settings{}, fmt.Errorf("load api key: %w", err)
	}
	method, _, err := p.Store.GetOption(ctx, KeyURLMethod)
	if err != nil {
		return Settings{}, fmt.Errorf("load url method: %w", err)
	}
	return Settings{APIKey: key, Method: transport.ParseMethod(method)}, nil
}

// SetAPIKey stores the account key.
func (p *Provider) SetAPIKey(ctx context.Context, key string) error {
	return p.Store.SetOption(ctx, KeyAPIKey, strings.TrimSpace(key))
}

// SetMethod stores the preferred transport method.
func (p *Provider) SetMethod(ctx context.Context, m transport.Method) error {
	return p.Store.SetOption(ctx, KeyURLMethod, string(m))
}

// Seed stores key and method only where nothing is stored yet.
func (p *Provider) Seed(ctx context.Context, key, method string) error {
	if key != "" {
		if _, ok, err := p.Store.GetOption(ctx, KeyAPIKey); err != nil {
			return err
		} else if !ok {
			if err := p.SetAPIKey(ctx, key); err != nil {
				return err
			}
		}
	}
	if method != "" {
		if _, ok, err := p.Store.GetOption(ctx, KeyURLMethod); err != nil {
			return err
		} else if !ok {
			if err := p.SetMethod(ctx, transport.ParseMethod(method)); err != nil {
				return err
			}
		}
	}
	return nil
}
