package update

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/fleetcore/otamqtt/archive/wheel"
)

// WheelUpgradeTagMismatch is fatal for an upgrade attempt; the old
// installation is left untouched.
type WheelUpgradeTagMismatch struct {
	Name, OldTag, NewTag string
}

func (e *WheelUpgradeTagMismatch) Error() string {
	return fmt.Sprintf("update: tag mismatch upgrading %s: %s -> %s", e.Name, e.OldTag, e.NewTag)
}

// Installer is the boundary interface wrapping the install/upgrade/src-write
// operations so the state machine itself never touches a filesystem
// directly.
type Installer interface {
	InstallWheel(r *wheel.Reader) error
	UpgradeWheel(existing *wheel.Package, r *wheel.Reader) error
	WriteSrc(path string, data []byte) error
	// ReadSrc returns a src-entry's current on-disk contents, for diffing
	// against a manifest's pkg_sha256 (path is absolute, outside Prefix).
	ReadSrc(path string) ([]byte, bool)
}

// FSInstaller is the default Installer, writing wheel members under Prefix
// (default "/lib"); WriteSrc writes at the absolute path it is given.
type FSInstaller struct {
	Prefix string
}

// NewFSInstaller returns an Installer rooted at prefix (default "/lib").
func NewFSInstaller(prefix string) *FSInstaller {
	if prefix == "" {
		prefix = "/lib"
	}
	return &FSInstaller{Prefix: prefix}
}

// InstallWheel copies every RECORD member of r to Prefix/<name>, creating
// parent directories as needed.
func (fs *FSInstaller) InstallWheel(r *wheel.Reader) error {
	for _, name := range r.Package.Record.Names() {
		data, err := r.Read(name)
		if err != nil {
			return fmt.Errorf("update: installing %s: %w", name, err)
		}
		if err := writeUnderPrefix(fs.Prefix, name, data); err != nil {
			return err
		}
	}
	return nil
}

// UpgradeWheel performs a member-wise upgrade against an already-installed
// package: entries with unchanged hash+size are skipped, changed entries are
// rewritten, and any file present in the old RECORD but absent from the new
// one is removed. If the version changed, the old dist-info directory is
// removed. Both packages must share the same Tag; a mismatch is fatal and
// leaves the old installation untouched.
func (fs *FSInstaller) UpgradeWheel(existing *wheel.Package, r *wheel.Reader) error {
	if existing.Tag != r.Package.Tag {
		return &WheelUpgradeTagMismatch{Name: existing.Name, OldTag: existing.Tag, NewTag: r.Package.Tag}
	}

	newRecord := r.Package.Record
	for _, name := range newRecord.Names() {
		newEntry, _ := newRecord.Get(name)
		if oldEntry, ok := existing.Record.Get(name); ok &&
			oldEntry.HasSize == newEntry.HasSize && oldEntry.Size == newEntry.Size &&
			oldEntry.Algo == newEntry.Algo && string(oldEntry.Hash) == string(newEntry.Hash) {
			continue // unchanged
		}
		data, err := r.Read(name)
		if err != nil {
			return fmt.Errorf("update: upgrading %s: %w", name, err)
		}
		if err := writeUnderPrefix(fs.Prefix, name, data); err != nil {
			return err
		}
	}

	for _, name := range existing.Record.Names() {
		if _, stillPresent := newRecord.Get(name); !stillPresent {
			_ = os.Remove(path.Join(fs.Prefix, name))
		}
	}

	if existing.Version != r.Package.Version {
		oldDistInfo := fmt.Sprintf("%s-%s.dist-info", existing.Name, existing.Version)
		if existing.Tag != "" {
			oldDistInfo = fmt.Sprintf("%s-%s-%s.dist-info", existing.Name, existing.Version, existing.Tag)
		}
		_ = os.RemoveAll(path.Join(fs.Prefix, oldDistInfo))
	}

	return nil
}

// WriteSrc writes data to path using delete-then-write semantics: an
// existing file is unlinked before the new content is written, since
// truncation is not assumed available on the target filesystem and leaving
// the old file in place could leave trailing stale bytes if the new content
// is shorter.
func (fs *FSInstaller) WriteSrc(target string, data []byte) error {
	if err := validateSrcPath(target); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("update: creating parent dirs for %s: %w", target, err)
	}

	if _, err := os.Stat(target); err == nil {
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("update: removing stale %s: %w", target, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("update: stat %s: %w", target, err)
	}

	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("update: writing %s: %w", target, err)
	}
	return nil
}

// ReadSrc implements Installer.
func (fs *FSInstaller) ReadSrc(target string) ([]byte, bool) {
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, false
	}
	return data, true
}

func writeUnderPrefix(prefix, name string, data []byte) error {
	target := path.Join(prefix, name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("update: creating parent dirs for %s: %w", target, err)
	}
	if _, err := os.Stat(target); err == nil {
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("update: removing stale %s: %w", target, err)
		}
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("update: writing %s: %w", target, err)
	}
	return nil
}
