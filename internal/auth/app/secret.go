package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/rollcall/pkg/cryptox"
)

// LoadSigningSecret resolves the HS256 secret used for every token kind.
//
// Sources, in order:
//   - AUTH_JWT_SECRET, used as is.
//   - AUTH_SECRET_FILE, read from disk and generated with 256 bits of
//     entropy on first start. Tokens survive restarts.
//   - Neither: a random secret held only in memory. Every outstanding token
//     becomes invalid when the process restarts.
func LoadSigningSecret(cfg Config, logger *slog.Logger) ([]byte, error) {
	if cfg.JWTSecret != "" {
		logger.Info("signing secret loaded", "source", "env")
		return []byte(cfg.JWTSecret), nil
	}

	if cfg.SecretFile != "" {
		secret, generated, err := cryptox.LoadOrGenerateSecret(cfg.SecretFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load signing secret: %w", err)
		}
		if generated {
			logger.Info("signing secret generated", "source", "file", "path", cfg.SecretFile)
		} else {
			logger.Info("signing secret loaded", "source", "file", "path", cfg.SecretFile)
		}
		return []byte(secret), nil
	}

	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing secret: %w", err)
	}
	logger.Warn("using ephemeral signing secret; tokens will not survive a restart",
		"hint", "set AUTH_JWT_SECRET or AUTH_SECRET_FILE")
	return []byte(secret), nil
}
