package gateway

import (
	"fmt"
	"os"
	"strings"

	"github.com/ctrlai/gatewayd/internal/config"
	"github.com/ctrlai/gatewayd/internal/upstream"
)

// resolveProvider picks the upstream provider for a chat request: a
// "claude"-prefixed model forces Anthropic, "gpt"-prefixed forces OpenAI,
// otherwise the configured default_provider applies. A system message, if
// present, may override the default explicitly.
func resolveProvider(cfg *config.Config, model, systemOverride string) upstream.Provider {
	switch {
	case strings.HasPrefix(model, "claude"):
		return upstream.ProviderAnthropic
	case strings.HasPrefix(model, "gpt"):
		return upstream.ProviderOpenAI
	}
	if systemOverride != "" {
		if p := upstream.Provider(systemOverride); p == upstream.ProviderAnthropic || p == upstream.ProviderOpenAI {
			return p
		}
	}
	return upstream.Provider(cfg.DefaultProvider)
}

// providerConfig looks up a provider's base URL, model default, and
// resolves its API key from the configured environment variable.
func providerConfig(cfg *config.Config, provider upstream.Provider) (config.ProviderConfig, string, error) {
	pc, ok := cfg.Providers[string(provider)]
	if !ok {
		return config.ProviderConfig{}, "", fmt.Errorf("gateway: unknown provider %q", provider)
	}
	key := os.Getenv(pc.APIKeyEnv)
	if key == "" {
		return pc, "", fmt.Errorf("No API key configured")
	}
	return pc, key, nil
}
