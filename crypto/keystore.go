package crypto

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

var (
	// ErrKeystoreExists is returned when WriteKeystore would replace a file
	// without being asked to.
	ErrKeystoreExists = errors.New("crypto: keystore file already exists")
	// ErrWrongPassphrase is returned when a keystore cannot be decrypted.
	ErrWrongPassphrase = errors.New("crypto: wrong keystore passphrase")
)

// WriteKeystore encrypts key as a v3 keystore file and returns the account it
// controls. Files are written 0600 under a 0700 directory. An existing file is
// replaced only when overwrite is set.
func WriteKeystore(path string, key *PrivateKey, passphrase string, overwrite bool) (Address, error) {
	if key == nil || key.PrivateKey == nil {
		return Address{}, errors.New("crypto: nil private key")
	}
	if strings.TrimSpace(path) == "" {
		return Address{}, errors.New("crypto: empty keystore path")
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return Address{}, err
	}
	encoded, err := keystore.EncryptKey(&keystore.Key{
		Id:         id,
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key.PrivateKey,
	}, passphrase, keystore.LightScryptN, keystore.LightScryptP)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: encrypt keystore: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Address{}, err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return Address{}, fmt.Errorf("%w: %s", ErrKeystoreExists, path)
		}
	}

	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return Address{}, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		return Address{}, err
	}
	if err := tmp.Close(); err != nil {
		return Address{}, err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return Address{}, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Address{}, err
	}
	return key.PubKey().Address(), nil
}

// ReadKeystore decrypts the keystore file at path.
func ReadKeystore(path, passphrase string) (*PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(keyJSON, passphrase)
	if errors.Is(err, keystore.ErrDecrypt) {
		return nil, ErrWrongPassphrase
	}
	if err != nil {
		return nil, fmt.Errorf("crypto: decode keystore: %w", err)
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}
