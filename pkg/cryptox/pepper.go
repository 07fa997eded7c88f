package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
)

var (
	pepper     string
	pepperFile string
)

// SetPepperPath configures where the hashing pepper is persisted. Must be
// called before the first hash or verify.
func SetPepperPath(file string) {
	pepperFile = file
}

// Pepper returns the process pepper, loading or generating it on first use.
func Pepper() string {
	if pepper != "" {
		return pepper
	}

	var err error
	pepper, err = loadOrGeneratePepper()
	if err != nil {
		slog.Error("failed to load or generate pepper", slog.Any("err", err))
		os.Exit(1)
	}
	return pepper
}

func loadOrGeneratePepper() (string, error) {
	pepperFile = filepath.Clean(pepperFile)
	if err := os.MkdirAll(filepath.Dir(pepperFile), 0750); err != nil {
		return "", err
	}

	if data, err := os.ReadFile(pepperFile); err == nil {
		return string(data), nil
	}

	raw := make([]byte, argonKeyLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	generated := base64.RawURLEncoding.EncodeToString(raw)

	if err := os.WriteFile(pepperFile, []byte(generated), 0600); err != nil {
		return "", err
	}
	return generated, nil
}
