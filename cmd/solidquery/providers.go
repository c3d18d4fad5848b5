package main

import (
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/soliddata/solidquery/internal/config"
	"github.com/soliddata/solidquery/internal/resilience"
	"github.com/soliddata/solidquery/pkg/provider/llm"
	"github.com/soliddata/solidquery/pkg/provider/llm/anyllm"
	oai "github.com/soliddata/solidquery/pkg/provider/llm/openai"
)

// builtinLLMProviders lists the provider names wired out of the box.
var builtinLLMProviders = []string{
	"openai", "openai-native", "anthropic", "ollama", "gemini",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// registerBuiltinProviders wires all built-in LLM provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// through the any-llm backend.
func registerBuiltinProviders(reg *config.Registry) {
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := anyllm.New(providerName, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}

	// openai-native talks to the OpenAI API through the official SDK instead
	// of the any-llm backend, which unlocks streaming tool deltas.
	reg.RegisterLLM("openai-native", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oai.Option
		if entry.BaseURL != "" {
			opts = append(opts, oai.WithBaseURL(entry.BaseURL))
		}
		return oai.New(entry.APIKey, entry.Model, opts...)
	})

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		p, err := anyllm.New("ollama", entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	for _, name := range builtinLLMProviders {
		slog.Debug("registered provider", "kind", "llm", "name", name)
	}
}

// buildProvider instantiates the primary LLM provider named in cfg and, when
// fallbacks are configured, wraps it so secondary providers are tried in order
// after the primary fails.
func buildProvider(cfg *config.Config) (llm.Provider, error) {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	primary, err := reg.CreateLLM(cfg.LLM.ProviderEntry)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.LLM.Provider, err)
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.LLM.Provider, "model", cfg.LLM.Model)

	if len(cfg.LLM.Fallbacks) == 0 {
		return primary, nil
	}

	fb := resilience.NewLLMFallback(primary, cfg.LLM.Provider, resilience.FallbackConfig{})
	for _, entry := range cfg.LLM.Fallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create fallback llm provider %q: %w", entry.Provider, err)
		}
		fb.AddFallback(entry.Provider, p)
		slog.Info("provider created", "kind", "llm-fallback", "name", entry.Provider, "model", entry.Model)
	}
	return fb, nil
}
