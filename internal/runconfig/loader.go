package runconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrEmptyProfile is returned for a profile file with no YAML document
var ErrEmptyProfile = errors.New("profile is empty")

// Load reads a YAML profile from path and also returns the raw bytes (run 기록용)
func Load(path string) (*Profile, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read profile: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, data, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, data, nil
}

// Parse strictly decodes exactly one YAML document and validates it.
// Unknown keys fail, so a typo never silently falls back to a default.
func Parse(data []byte) (*Profile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Profile
	switch err := dec.Decode(&p); {
	case errors.Is(err, io.EOF):
		return nil, ErrEmptyProfile
	case err != nil:
		return nil, err
	}

	// 두 번째 문서가 있으면 어느 쪽이 유효한지 모호함
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("profile must contain a single YAML document")
	}

	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Hash fingerprints a profile as the SHA-256 of its JSON form.
// encoding/json sorts map keys, so universe order never changes the hash.
func Hash(p *Profile) (string, error) {
	canonical, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("hash profile: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
