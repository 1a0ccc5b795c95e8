// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"
)

func generate(t *testing.T) Keypair {
	t.Helper()
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	return keypair
}

func identities(t *testing.T, keypairs ...Keypair) []age.Identity {
	t.Helper()
	var parsed []age.Identity
	for _, keypair := range keypairs {
		identity, err := age.ParseX25519Identity(keypair.PrivateKey)
		if err != nil {
			t.Fatalf("ParseX25519Identity: %v", err)
		}
		parsed = append(parsed, identity)
	}
	return parsed
}

func TestGenerateKeypair(t *testing.T) {
	keypair := generate(t)

	if !strings.HasPrefix(keypair.PrivateKey, "AGE-SECRET-KEY-1") {
		t.Errorf("PrivateKey has wrong prefix")
	}
	if !strings.HasPrefix(keypair.PublicKey, "age1") {
		t.Errorf("PublicKey = %q, want prefix age1", keypair.PublicKey)
	}
	if other := generate(t); other.PublicKey == keypair.PublicKey {
		t.Error("two generated keypairs have identical public keys")
	}
}

func TestEncryptDecrypt(t *testing.T) {
	first := generate(t)
	second := generate(t)

	plaintext := []byte("//depot/main/secret.c content")
	ciphertext, err := Encrypt(plaintext, []string{first.PublicKey, second.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if !IsSealed(ciphertext) {
		t.Error("ciphertext does not carry the age header")
	}
	if bytes.Contains(ciphertext, plaintext) {
		t.Error("ciphertext contains the plaintext")
	}

	// Either recipient can open it.
	for name, keypair := range map[string]Keypair{"first": first, "second": second} {
		decrypted, err := Decrypt(ciphertext, identities(t, keypair))
		if err != nil {
			t.Fatalf("Decrypt(%s) error: %v", name, err)
		}
		if !bytes.Equal(decrypted, plaintext) {
			t.Errorf("Decrypt(%s) = %q, want %q", name, decrypted, plaintext)
		}
	}
}

func TestDecrypt_WrongIdentity(t *testing.T) {
	ciphertext, err := Encrypt([]byte("payload"), []string{generate(t).PublicKey})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if _, err := Decrypt(ciphertext, identities(t, generate(t))); err == nil {
		t.Error("Decrypt with an unrelated identity succeeded")
	}
	if _, err := Decrypt(ciphertext, nil); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("Decrypt without identities = %v, want ErrNoIdentity", err)
	}
}

func TestEncrypt_Errors(t *testing.T) {
	if _, err := Encrypt([]byte("x"), nil); err == nil {
		t.Error("Encrypt without recipients succeeded")
	}
	if _, err := Encrypt([]byte("x"), []string{"age1notakey"}); err == nil {
		t.Error("Encrypt with an invalid recipient succeeded")
	}
}

func TestIsSealed(t *testing.T) {
	if IsSealed([]byte("P4FSSNP1")) {
		t.Error("snapshot magic reported as sealed")
	}
	if IsSealed(nil) {
		t.Error("empty data reported as sealed")
	}
}

func TestLoadIdentities(t *testing.T) {
	keypair := generate(t)
	path := filepath.Join(t.TempDir(), "identity.txt")
	content := "# created: 2026-01-01T00:00:00Z\n# public key: " + keypair.PublicKey + "\n" + keypair.PrivateKey + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write identity: %v", err)
	}

	loaded, err := LoadIdentities(path)
	if err != nil {
		t.Fatalf("LoadIdentities: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded %d identities, want 1", len(loaded))
	}

	ciphertext, err := Encrypt([]byte("payload"), []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if _, err := Decrypt(ciphertext, loaded); err != nil {
		t.Errorf("Decrypt with loaded identity: %v", err)
	}

	if _, err := LoadIdentities(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("LoadIdentities of a missing file succeeded")
	}
}

func TestParsePublicKey(t *testing.T) {
	if err := ParsePublicKey(generate(t).PublicKey); err != nil {
		t.Errorf("ParsePublicKey(valid): %v", err)
	}
	for _, key := range []string{"", "age1", "ssh-ed25519 AAAA"} {
		if err := ParsePublicKey(key); err == nil {
			t.Errorf("ParsePublicKey(%q) succeeded", key)
		}
	}
}
