// Copyright 2025 Certen Protocol
//
// Key loading, grounded on main.go's loadOrGenerateEd25519Key: a key file
// is generated on first run and reused on every later one, rather than
// being re-derived from anything else about the process.

package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/certen/contract-executor/pkg/poex"
)

func loadOrGenerateEd25519Key(path string) (ed25519.PrivateKey, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("🔑 Generating new Ed25519 executor key at %s", path)
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		if err := os.WriteFile(path, []byte(hex.EncodeToString(priv)), 0600); err != nil {
			return nil, fmt.Errorf("save ed25519 key to %s: %w", path, err)
		}
		return priv, nil
	}

	log.Printf("🔑 Loading Ed25519 executor key from %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ed25519 key from %s: %w", path, err)
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode ed25519 key from %s: %w", path, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 key size in %s: expected %d, got %d", path, ed25519.PrivateKeySize, len(raw))
	}
	return ed25519.PrivateKey(raw), nil
}

// loadOrGeneratePoexSecret loads (or generates, on first run) this
// executor's Bandersnatch accumulator secret scalar, the counterpart of
// loadOrGenerateEd25519Key for pkg/poex's curve.
func loadOrGeneratePoexSecret(path string) (fr.Element, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fr.Element{}, fmt.Errorf("create key directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("🔑 Generating new PoEx accumulator key at %s", path)
		var secret fr.Element
		if _, err := secret.SetRandom(); err != nil {
			return fr.Element{}, fmt.Errorf("generate poex secret: %w", err)
		}
		if err := os.WriteFile(path, []byte(poex.MarshalSecretHex(secret)), 0600); err != nil {
			return fr.Element{}, fmt.Errorf("save poex secret to %s: %w", path, err)
		}
		return secret, nil
	}

	log.Printf("🔑 Loading PoEx accumulator key from %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return fr.Element{}, fmt.Errorf("read poex secret from %s: %w", path, err)
	}
	secret, err := poex.ParseSecretHex(strings.TrimSpace(string(data)))
	if err != nil {
		return fr.Element{}, fmt.Errorf("decode poex secret from %s: %w", path, err)
	}
	return secret, nil
}
