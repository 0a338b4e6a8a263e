package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"evalsum/internal/config"
	"evalsum/internal/logging"
)

// KeyRules is the syntactic shape of a provider credential.
type KeyRules struct {
	Prefix    string
	MinLength int
}

var keyRules = map[string]KeyRules{
	config.ProviderClaude: {Prefix: "sk-ant-", MinLength: 20},
	config.ProviderOpenAI: {Prefix: "sk-", MinLength: 20},
	config.ProviderGemini: {Prefix: "AIza", MinLength: 20},
}

// RulesFor returns the credential rules of provider, defaulting to Claude's.
func RulesFor(provider string) KeyRules {
	if r, ok := keyRules[provider]; ok {
		return r
	}
	return keyRules[config.ProviderClaude]
}

// ValidFormat reports whether key is non-empty, carries the prefix and is
// longer than MinLength.
func (r KeyRules) ValidFormat(key string) bool {
	return key != "" && strings.HasPrefix(key, r.Prefix) && len(key) > r.MinLength
}

// KeyValidator checks credentials locally and against the provider.
type KeyValidator struct {
	cfg      config.ProviderConfig
	rules    KeyRules
	newModel ModelFactory
	logger   *zap.Logger
}

// NewKeyValidator constructs a validator for the configured provider.
func NewKeyValidator(cfg config.ProviderConfig, factory ModelFactory, logger *zap.Logger) *KeyValidator {
	if factory == nil {
		factory = NewChatModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeyValidator{cfg: cfg, rules: RulesFor(cfg.Name), newModel: factory, logger: logger.Named("keys")}
}

// Provider returns the configured provider name.
func (v *KeyValidator) Provider() string { return v.cfg.Name }

// Rules returns the credential rules in effect.
func (v *KeyValidator) Rules() KeyRules { return v.rules }

// ValidFormat is the local format predicate. It never touches the network.
func (v *KeyValidator) ValidFormat(key string) bool {
	return v.rules.ValidFormat(key)
}

// Check sends a minimal request with key. Any provider error counts as an
// invalid key; only a failure to build the client is returned as an error.
func (v *KeyValidator) Check(ctx context.Context, key string) (bool, error) {
	chatModel, err := v.newModel(ctx, v.cfg, key, 10)
	if err != nil {
		return false, fmt.Errorf("init %s client: %w", v.cfg.Name, err)
	}
	resp, err := chatModel.Generate(ctx, []*schema.Message{schema.UserMessage("Hello")})
	if err != nil {
		logging.FromContext(ctx).Info("key rejected by provider",
			zap.String("key", MaskKey(key)),
			zap.Error(err),
		)
		return false, nil
	}
	return resp != nil && strings.TrimSpace(resp.Content) != "", nil
}

// MaskKey keeps the first seven and last four characters of key.
func MaskKey(key string) string {
	if len(key) <= 11 {
		return strings.Repeat("*", len(key))
	}
	return key[:7] + "…" + key[len(key)-4:]
}
