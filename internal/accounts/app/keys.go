package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
)

// sessionKeys holds the material that signs and verifies session tokens.
type sessionKeys struct {
	signer   *jwtx.EdDSASigner
	keySet   *jwtx.KeySet
	verifier *jwtx.EdDSAVerifier
}

// initSessionKeys loads the Ed25519 signing key from cfg.Auth.SigningKeyFile,
// creating it on first start. Without a file the key lives only in memory
// and every session dies with the process.
func initSessionKeys(cfg Config, logger *slog.Logger) (*sessionKeys, error) {
	pemKey, err := cryptox.LoadOrCreateEd25519Key(cfg.Auth.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	signer, err := jwtx.NewSignerEdDSA(cfg.Auth.KeyID, pemKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}

	keys := jwtx.NewKeySet()
	if err := keys.AddSigner(signer); err != nil {
		return nil, fmt.Errorf("failed to register signing key: %w", err)
	}

	if cfg.Auth.SigningKeyFile == "" {
		logger.Warn("signing key is ephemeral, sessions will not survive a restart")
	}
	logger.Info("session signing key loaded", slog.String("kid", signer.KID()))

	return &sessionKeys{
		signer:   signer,
		keySet:   keys,
		verifier: jwtx.NewVerifierEdDSA(keys, cfg.Auth.Issuer, nil),
	}, nil
}
