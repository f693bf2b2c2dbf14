package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gocloud.dev/secrets"

	apperrors "github.com/allisson/lightldap/internal/errors"
	"github.com/allisson/lightldap/internal/opaque"

	// Register the KMS providers that may seal the key file.
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// ErrServerKeyNotFound indicates the key file does not exist yet.
var ErrServerKeyNotFound = apperrors.Wrap(apperrors.ErrNotFound, "server key not found")

// ErrServerKeyExists indicates Generate would overwrite an existing key.
var ErrServerKeyExists = apperrors.Wrap(apperrors.ErrConflict, "server key already exists")

// serverKeyService implements ServerKeyService with a local file, optionally sealed by a
// gocloud.dev secrets keeper.
type serverKeyService struct {
	path   string
	kmsURI string
	logger *slog.Logger
}

// NewServerKeyService creates a ServerKeyService storing the key at path. When kmsURI is
// set (e.g. "base64key://...", "hashivault://..."), the file holds the keeper ciphertext.
func NewServerKeyService(path, kmsURI string, logger *slog.Logger) ServerKeyService {
	return &serverKeyService{
		path:   path,
		kmsURI: kmsURI,
		logger: logger,
	}
}

// Load reads and unseals the key file.
func (s *serverKeyService) Load(ctx context.Context) (*opaque.ServerKey, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrServerKeyNotFound
		}
		return nil, fmt.Errorf("failed to read server key file: %w", err)
	}

	if s.kmsURI != "" {
		data, err = s.withKeeper(ctx, func(keeper *secrets.Keeper) ([]byte, error) {
			return keeper.Decrypt(ctx, data)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to unseal server key: %w", err)
		}
	}

	var key opaque.ServerKey
	if err := key.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &key, nil
}

// Generate creates a new key and writes it with owner-only permissions.
func (s *serverKeyService) Generate(ctx context.Context, overwrite bool) (*opaque.ServerKey, error) {
	if !overwrite {
		if _, err := os.Stat(s.path); err == nil {
			return nil, ErrServerKeyExists
		}
	}

	key, err := opaque.GenerateServerKey()
	if err != nil {
		return nil, err
	}
	data, err := key.MarshalBinary()
	if err != nil {
		return nil, err
	}

	if s.kmsURI != "" {
		data, err = s.withKeeper(ctx, func(keeper *secrets.Keeper) ([]byte, error) {
			return keeper.Encrypt(ctx, data)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to seal server key: %w", err)
		}
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write server key file: %w", err)
	}

	s.logger.Info("server key generated",
		slog.String("path", s.path),
		slog.Bool("sealed", s.kmsURI != ""),
	)
	return key, nil
}

// LoadOrGenerate loads the key and generates one when the file is missing.
func (s *serverKeyService) LoadOrGenerate(ctx context.Context) (*opaque.ServerKey, error) {
	key, err := s.Load(ctx)
	if errors.Is(err, ErrServerKeyNotFound) {
		return s.Generate(ctx, false)
	}
	return key, err
}

func (s *serverKeyService) withKeeper(
	ctx context.Context,
	fn func(keeper *secrets.Keeper) ([]byte, error),
) ([]byte, error) {
	keeper, err := secrets.OpenKeeper(ctx, s.kmsURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			s.logger.Error("failed to close KMS keeper", slog.Any("error", closeErr))
		}
	}()
	return fn(keeper)
}
