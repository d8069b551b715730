package wheel

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"regexp"

	"github.com/fleetcore/otamqtt/archive/zipfile"
)

// distInfoRE identifies the dist-info directory by member name. Group
// indices: 1=dist-info path prefix (trailing slash, no RECORD), 3=name,
// 4=version, 6=tag (may be empty).
var distInfoRE = regexp.MustCompile(`^(((.+?)-(.+?))(-(P\d[^-]*))?\.dist-info/)RECORD$`)

// Reader is an opened wheel: the underlying ZIP's central directory has been
// parsed and the dist-info RECORD/METADATA consumed.
type Reader struct {
	zr           *zipfile.Reader
	distInfoPath string
	Package      *Package
}

// Open locates the dist-info directory inside zr, parses METADATA and
// RECORD, and returns a Reader. It fails with BadWheelFile if no dist-info
// RECORD member is found.
func Open(zr *zipfile.Reader) (*Reader, error) {
	var distInfoPath, name, version, tag string
	found := false
	for _, member := range zr.Names() {
		m := distInfoRE.FindStringSubmatch(member)
		if m == nil {
			continue
		}
		distInfoPath, name, version, tag = m[1], m[3], m[4], m[6]
		found = true
		break
	}
	if !found {
		return nil, &BadWheelFile{Reason: "missing dist-info directory"}
	}

	metadataRaw, err := zr.Open(distInfoPath + "METADATA")
	if err != nil {
		return nil, fmt.Errorf("wheel: reading METADATA: %w", err)
	}
	recordRaw, err := zr.Open(distInfoPath + "RECORD")
	if err != nil {
		return nil, fmt.Errorf("wheel: reading RECORD: %w", err)
	}

	pkg, err := NewPackage(name, version, tag, string(metadataRaw), string(recordRaw))
	if err != nil {
		return nil, err
	}

	return &Reader{zr: zr, distInfoPath: distInfoPath, Package: pkg}, nil
}

// DistInfoPath returns the archive-relative directory holding
// METADATA/WHEEL/RECORD, trailing slash included.
func (r *Reader) DistInfoPath() string { return r.distInfoPath }

// Names returns every member name in the underlying ZIP.
func (r *Reader) Names() []string { return r.zr.Names() }

// Read returns the decompressed bytes of member name, validating them
// against the RECORD entry when one exists for that name. A member with no
// RECORD entry (an incidental extra file), or whose entry carries neither a
// size nor a recognised hash (such as RECORD's own ",," line), is returned
// unchecked.
func (r *Reader) Read(name string) ([]byte, error) {
	data, err := r.zr.Open(name)
	if err != nil {
		return nil, err
	}

	entry, ok := r.Package.Record.Get(name)
	if !ok {
		return data, nil
	}

	if entry.HasSize && len(data) != entry.Size {
		return nil, &BadWheelFile{Reason: fmt.Sprintf("bad size for file %s", name)}
	}

	if hasher := entry.Hasher(); hasher != nil {
		h := hasher()
		h.Write(data)
		if !bytes.Equal(h.Sum(nil), entry.Hash) {
			return nil, &BadWheelFile{Reason: fmt.Sprintf("bad %s for file %s", entry.Algo, name)}
		}
	}

	return data, nil
}

// Sha256Hex is a convenience used by the update channel to hash installed
// src files against a manifest's pkg_sha256.
func Sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}
