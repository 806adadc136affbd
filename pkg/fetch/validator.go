package fetch

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Validator is the cache-validation record persisted beside a downloaded
// file. The field names and string encoding mirror the HTTP headers they
// come from.
type Validator struct {
	ETag          string `json:"ETag"`
	LastModified  string `json:"Last-Modified,omitempty"`
	ContentLength string `json:"Content-Length"`
}

// LoadValidator reads a validator sidecar. A missing file is not an error:
// it returns (nil, nil).
func LoadValidator(path string) (*Validator, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read validator %s: %w", path, err)
	}

	var v Validator
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse validator %s: %w", path, err)
	}
	return &v, nil
}

// Save writes the validator sidecar, creating parent directories as needed.
func (v *Validator) Save(path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode validator: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write validator %s: %w", path, err)
	}
	return nil
}

// Matches reports whether the validator can be trusted for the given local
// file: the file must exist and its byte length must equal the recorded
// Content-Length. Anything else is a cache miss.
func (v *Validator) Matches(localPath string) bool {
	if v == nil {
		return false
	}
	want, err := strconv.ParseInt(v.ContentLength, 10, 64)
	if err != nil {
		return false
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return false
	}
	return info.Size() == want
}
