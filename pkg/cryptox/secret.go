package cryptox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MinSecretLength is the shortest signing secret we accept, in bytes.
const MinSecretLength = 32

var ErrSecretTooShort = fmt.Errorf("cryptox: secret shorter than %d bytes", MinSecretLength)

// LoadOrGenerateSecret reads a signing secret from path, creating the file
// with a fresh 256-bit secret if it doesn't exist yet. The boolean reports
// whether a new secret was generated.
func LoadOrGenerateSecret(path string) (string, bool, error) {
	path = filepath.Clean(path)

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		secret := strings.TrimSpace(string(b))
		if len(secret) < MinSecretLength {
			return "", false, fmt.Errorf("%w: %s", ErrSecretTooShort, path)
		}
		return secret, false, nil
	case !errors.Is(err, os.ErrNotExist):
		return "", false, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", false, err
	}

	secret, err := GenerateToken(TokenSize256)
	if err != nil {
		return "", false, err
	}

	// O_EXCL so two instances starting together can't clobber each other.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return LoadOrGenerateSecret(path)
		}
		return "", false, err
	}
	defer f.Close()

	if _, err := f.WriteString(secret); err != nil {
		return "", false, err
	}
	return secret, true, nil
}
