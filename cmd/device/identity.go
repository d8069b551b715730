package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// loadOrCreateUniqueID returns the 16 raw bytes of this device's persisted
// identity, creating and saving a fresh one on first run. A physical
// micro-device reads a unique ID from silicon; a host process has no such
// register, so a UUID persisted alongside the config file stands in for it.
func loadOrCreateUniqueID(path string) ([]byte, error) {
	if data, err := os.ReadFile(path); err == nil {
		id, err := uuid.FromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("identity: parsing %s: %w", path, err)
		}
		b := id[:]
		return b, nil
	}

	id := uuid.New()
	if err := os.WriteFile(path, id[:], 0o600); err != nil {
		return nil, fmt.Errorf("identity: writing %s: %w", path, err)
	}
	return id[:], nil
}
