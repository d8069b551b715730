package update

import (
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/fleetcore/otamqtt/archive/wheel"
)

// Inventory is the boundary interface over installed wheels. The update
// channel never touches a filesystem directly; it only calls through this
// interface.
type Inventory interface {
	// InstalledWheel reports the version and tag of an installed package by
	// name, and whether it is installed at all.
	InstalledWheel(name string) (version, tag string, ok bool)
	// InstalledWheels returns every installed package name mapped to its
	// version, used to build the NodeInfo payload.
	InstalledWheels() map[string]string
	// InstalledPackage returns the full parsed package (including its
	// RECORD) for an installed name, needed to diff against an incoming
	// upgrade member-by-member.
	InstalledPackage(name string) (*wheel.Package, bool)
}

// FSInventory is the default Inventory, scanning `<Prefix>/*.dist-info/`
// directories for installed package metadata.
type FSInventory struct {
	Prefix string
}

var distInfoDirRE = regexp.MustCompile(`^(.+?)-([^-]+)(-(P\d[^-]*))?\.dist-info$`)

// NewFSInventory returns an Inventory rooted at prefix (default "/lib").
func NewFSInventory(prefix string) *FSInventory {
	if prefix == "" {
		prefix = "/lib"
	}
	return &FSInventory{Prefix: prefix}
}

func (fs *FSInventory) listDistInfoDirs() ([]string, error) {
	entries, err := os.ReadDir(fs.Prefix)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var dirs []string
	for _, ent := range entries {
		if ent.IsDir() && strings.HasSuffix(ent.Name(), ".dist-info") {
			dirs = append(dirs, ent.Name())
		}
	}
	return dirs, nil
}

func (fs *FSInventory) readPackage(distInfoDir string) (*wheel.Package, bool) {
	m := distInfoDirRE.FindStringSubmatch(distInfoDir)
	if m == nil {
		return nil, false
	}
	name, version, tag := m[1], m[2], m[4]

	metadataRaw, err := os.ReadFile(path.Join(fs.Prefix, distInfoDir, "METADATA"))
	if err != nil {
		return nil, false
	}
	recordRaw, err := os.ReadFile(path.Join(fs.Prefix, distInfoDir, "RECORD"))
	if err != nil {
		return nil, false
	}

	pkg, err := wheel.NewPackage(name, version, tag, string(metadataRaw), string(recordRaw))
	if err != nil {
		return nil, false
	}
	return pkg, true
}

// InstalledWheel implements Inventory.
func (fs *FSInventory) InstalledWheel(name string) (string, string, bool) {
	dirs, err := fs.listDistInfoDirs()
	if err != nil {
		return "", "", false
	}
	for _, dir := range dirs {
		pkg, ok := fs.readPackage(dir)
		if ok && pkg.Name == name {
			return pkg.Version, pkg.Tag, true
		}
	}
	return "", "", false
}

// InstalledWheels implements Inventory.
func (fs *FSInventory) InstalledWheels() map[string]string {
	out := make(map[string]string)
	dirs, err := fs.listDistInfoDirs()
	if err != nil {
		return out
	}
	for _, dir := range dirs {
		if pkg, ok := fs.readPackage(dir); ok {
			out[pkg.Name] = pkg.Version
		}
	}
	return out
}

// InstalledPackage implements Inventory.
func (fs *FSInventory) InstalledPackage(name string) (*wheel.Package, bool) {
	dirs, err := fs.listDistInfoDirs()
	if err != nil {
		return nil, false
	}
	for _, dir := range dirs {
		if pkg, ok := fs.readPackage(dir); ok && pkg.Name == name {
			return pkg, true
		}
	}
	return nil, false
}
