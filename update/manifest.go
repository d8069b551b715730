// Package update implements the OTA update channel state machine: diffing
// an announced manifest against local inventory, subscribing to exactly the
// missing artifacts, and installing them through explicit boundary
// interfaces rather than touching the filesystem directly.
package update

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EntryType distinguishes the two manifest entry shapes.
type EntryType string

const (
	EntryWheel EntryType = "wheel"
	EntrySrc   EntryType = "src"
)

// ManifestEntry is one element of the JSON array published on a channel or
// cmd topic.
type ManifestEntry struct {
	Type      EntryType `json:"type"`
	Name      string    `json:"name,omitempty"`
	Version   string    `json:"version,omitempty"`
	Path      string    `json:"path,omitempty"`
	PkgSHA256 string    `json:"pkg_sha256"`
}

// ParseManifest decodes a channel/cmd payload into its entries.
func ParseManifest(raw []byte) ([]ManifestEntry, error) {
	var entries []ManifestEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("update: parsing manifest: %w", err)
	}
	return entries, nil
}

// PkgID builds the content-addressed package identifier used in
// mpypi/packages/<pkg_id>: "wheel/<sha256>" or "src/<path>/<sha256>".
func (e ManifestEntry) PkgID() string {
	switch e.Type {
	case EntryWheel:
		return "wheel/" + e.PkgSHA256
	case EntrySrc:
		// Path is an absolute path (leading slash), so this intentionally
		// yields a double slash after "src" — e.g. "src//app/config.ini/<sha>" —
		// matching the wire format the manifest's src entries are delivered on.
		return "src/" + e.Path + "/" + e.PkgSHA256
	default:
		return ""
	}
}

// ParsePkgID splits a package identifier back into its type and payload. A
// src path containing ".." or a backslash is rejected before anything
// derived from it ever touches the filesystem.
func ParsePkgID(pkgID string) (EntryType, string, string, error) {
	typ, rest, ok := strings.Cut(pkgID, "/")
	if !ok {
		return "", "", "", fmt.Errorf("update: malformed package id %q", pkgID)
	}

	switch EntryType(typ) {
	case EntryWheel:
		return EntryWheel, "", rest, nil
	case EntrySrc:
		idx := strings.LastIndex(rest, "/")
		if idx < 0 {
			return "", "", "", fmt.Errorf("update: malformed src package id %q", pkgID)
		}
		path, sha := rest[:idx], rest[idx+1:]
		if err := validateSrcPath(path); err != nil {
			return "", "", "", err
		}
		return EntrySrc, path, sha, nil
	default:
		return "", "", "", fmt.Errorf("update: unknown package type %q", typ)
	}
}

func validateSrcPath(path string) error {
	if strings.Contains(path, "..") || strings.ContainsRune(path, '\\') {
		return fmt.Errorf("update: unsafe src path %q", path)
	}
	return nil
}
