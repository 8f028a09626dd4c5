package riskprofile

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML profile file and returns the profile with raw bytes
// KnownFields(true): 오타/미사용 필드는 즉시 실패
func Load(path string) (*Profile, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read risk profile: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, data, fmt.Errorf("%s: %w", path, err)
	}
	return p, data, nil
}

// Parse decodes and validates profile YAML
func Parse(data []byte) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode risk profile: %w", err)
	}

	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Hash generates SHA256 hash from the profile (canonical JSON)
// map 대신 struct/slice만 사용하므로 해시가 재현된다
func Hash(p *Profile) (string, error) {
	jsonBytes, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// NewSnapshot records which profile was loaded
func NewSnapshot(p *Profile, yamlData []byte) (*Snapshot, error) {
	hash, err := Hash(p)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		ProfileID: p.Meta.ProfileID,
		Hash:      hash,
		YAML:      string(yamlData),
		LoadedAt:  time.Now(),
	}, nil
}
