// Package wheel parses the "wheel" archive format used to distribute
// installable packages over the update channel: a ZIP container (see the
// sibling zipfile package) with a distinguished `<name>-<version>.dist-info/`
// directory holding METADATA, WHEEL and RECORD.
package wheel

import "fmt"

// BadWheelFile reports a structural problem specific to the wheel layer —
// missing dist-info directory, or a RECORD-vs-content mismatch — distinct
// from zipfile.BadZipFile, which reports ZIP-level corruption.
type BadWheelFile struct {
	Reason string
}

func (e *BadWheelFile) Error() string { return "wheel: " + e.Reason }

// Package is the parsed identity and manifest of one wheel.
type Package struct {
	Name     string
	Version  string
	Tag      string
	Metadata Metadata
	Record   *Record
}

// NewPackage parses Package fields from raw METADATA and RECORD contents.
func NewPackage(name, version, tag, rawMetadata, rawRecord string) (*Package, error) {
	md, err := ParseMetadata(rawMetadata)
	if err != nil {
		return nil, fmt.Errorf("wheel: parsing METADATA: %w", err)
	}
	rec, err := ParseRecord(rawRecord)
	if err != nil {
		return nil, fmt.Errorf("wheel: parsing RECORD: %w", err)
	}
	return &Package{Name: name, Version: version, Tag: tag, Metadata: md, Record: rec}, nil
}

func (p *Package) String() string {
	return fmt.Sprintf("<Package name=%s version=%s tag=%s record_entries=%d>",
		p.Name, p.Version, p.Tag, p.Record.Len())
}
