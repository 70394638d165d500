package manifest

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// Method selects how a fetched manifest is verified.
type Method string

const (
	// MethodNone accepts the document as served.
	MethodNone Method = "none"
	// MethodSHA256 compares the document against its .sha256 file.
	MethodSHA256 Method = "sha256"
	// MethodGPG checks the document against its detached .asc signature.
	MethodGPG Method = "gpg"
)

// ParseMethod validates a verification method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case "", MethodNone:
		return MethodNone, nil
	case MethodSHA256, MethodGPG:
		return m, nil
	default:
		return "", fmt.Errorf("unknown verification method %q (want none, sha256 or gpg)", s)
	}
}

// suffix returns the extension of the companion file the method needs.
func (m Method) suffix() string {
	switch m {
	case MethodSHA256:
		return ".sha256"
	case MethodGPG:
		return ".asc"
	default:
		return ""
	}
}

// Verifier checks manifest documents against their checksum or signature.
type Verifier struct {
	method  Method
	keyring openpgp.EntityList
}

// NewVerifier creates a verifier. MethodGPG needs a keyring file; the other
// methods ignore keyringPath.
func NewVerifier(method Method, keyringPath string) (*Verifier, error) {
	v := &Verifier{method: method}
	switch method {
	case MethodNone, MethodSHA256:
		return v, nil
	case MethodGPG:
		if keyringPath == "" {
			return nil, errors.New("gpg verification needs a keyring")
		}
		keyring, err := LoadKeyring(keyringPath)
		if err != nil {
			return nil, err
		}
		v.keyring = keyring
		return v, nil
	default:
		return nil, fmt.Errorf("unknown verification method %q", method)
	}
}

// Method returns the configured verification method.
func (v *Verifier) Method() Method {
	if v == nil {
		return MethodNone
	}
	return v.method
}

// Accepts reports whether a document verified earlier with method is good
// enough for this verifier.
func (v *Verifier) Accepts(method string) bool {
	return v.Method() == MethodNone || Method(method) == v.Method()
}

// Verify checks doc, fetched from url, against companion, the checksum file
// or detached signature fetched from url plus the method's suffix.
func (v *Verifier) Verify(url string, doc, companion []byte) error {
	var err error
	switch v.Method() {
	case MethodNone:
		return nil
	case MethodSHA256:
		err = verifySHA256(doc, companion, path.Base(url))
	case MethodGPG:
		err = verifyGPG(v.keyring, doc, companion)
	}
	if err != nil {
		return fmt.Errorf("verify %s: %w", url, err)
	}
	return nil
}

// LoadKeyring reads an armored or binary OpenPGP keyring.
func LoadKeyring(keyringPath string) (openpgp.EntityList, error) {
	data, err := os.ReadFile(keyringPath)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}

	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		// Try reading as non-armored keyring
		keyring, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return keyring, nil
}

func verifyGPG(keyring openpgp.EntityList, doc, signature []byte) error {
	_, err := openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(doc), bytes.NewReader(signature), nil)
	if err != nil {
		// Try non-armored signature
		_, err = openpgp.CheckDetachedSignature(keyring, bytes.NewReader(doc), bytes.NewReader(signature), nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	return nil
}

func verifySHA256(doc, checksumFile []byte, filename string) error {
	expected, err := findChecksum(checksumFile, filename)
	if err != nil {
		return fmt.Errorf("find checksum: %w", err)
	}

	sum := sha256.Sum256(doc)
	actual := hex.EncodeToString(sum[:])
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("checksum mismatch:\nactual:   %s\nexpected: %s", actual, expected)
	}
	return nil
}

// findChecksum finds the checksum for filename in a checksum file.
// Format: "abc123def456  channel-rust-nightly.toml". A single bare digest
// is accepted as well.
func findChecksum(checksumFile []byte, filename string) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(checksumFile))
	var lone string
	lines := 0
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		lines++
		if len(parts) == 1 {
			lone = parts[0]
			continue
		}

		// sha256sum prefixes binary-mode names with '*'
		name := strings.TrimPrefix(parts[1], "*")
		if name == filename || path.Base(name) == filename {
			return parts[0], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan checksum file: %w", err)
	}
	if lines == 1 && lone != "" {
		return lone, nil
	}

	return "", fmt.Errorf("checksum not found for %s", filename)
}
