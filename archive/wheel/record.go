package wheel

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash"
	"strconv"
	"strings"
)

// hashers maps a RECORD checksum algorithm name to its constructor. An
// unrecognized algorithm simply disables the checksum check for that entry.
var hashers = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
}

// RecordEntry is one row of a wheel's RECORD file: name,algo=hash,size. Hash
// and size are optional per PEP 376 (directories and generated files may
// omit them).
type RecordEntry struct {
	Name    string
	Algo    string
	Hash    []byte
	Size    int
	HasSize bool
}

// Hasher returns the hash.Hash constructor for this entry's algorithm, or
// nil if the algorithm is unset or unrecognized.
func (e RecordEntry) Hasher() func() hash.Hash {
	if e.Algo == "" {
		return nil
	}
	return hashers[e.Algo]
}

func (e RecordEntry) String() string {
	return fmt.Sprintf("<RecordEntry name=%s algo=%s hash=%s>",
		e.Name, e.Algo, base64.RawURLEncoding.EncodeToString(e.Hash))
}

// ParseRecordLine parses one RECORD line. The format is comma-separated
// with the name component itself allowed to contain commas, so the split is
// anchored from the right.
func ParseRecordLine(line string) (RecordEntry, error) {
	idx2 := strings.LastIndex(line, ",")
	if idx2 < 0 {
		return RecordEntry{}, fmt.Errorf("wheel: malformed RECORD line %q", line)
	}
	sizeField := line[idx2+1:]
	rest := line[:idx2]

	idx1 := strings.LastIndex(rest, ",")
	if idx1 < 0 {
		return RecordEntry{}, fmt.Errorf("wheel: malformed RECORD line %q", line)
	}
	checksumField := rest[idx1+1:]
	name := rest[:idx1]

	e := RecordEntry{Name: name}
	if checksumField != "" {
		algo, encoded, ok := strings.Cut(checksumField, "=")
		if !ok {
			return RecordEntry{}, fmt.Errorf("wheel: malformed checksum field %q", checksumField)
		}
		hashBytes, err := decodeURLSafeNoPad(encoded)
		if err != nil {
			return RecordEntry{}, fmt.Errorf("wheel: decoding checksum for %q: %w", name, err)
		}
		e.Algo = algo
		e.Hash = hashBytes
	}
	if sizeField != "" {
		n, err := strconv.Atoi(sizeField)
		if err != nil {
			return RecordEntry{}, fmt.Errorf("wheel: malformed size field %q: %w", sizeField, err)
		}
		e.Size = n
		e.HasSize = true
	}
	return e, nil
}

func decodeURLSafeNoPad(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// Record is the ordered RECORD table of a wheel.
type Record struct {
	order  []string
	byName map[string]RecordEntry
}

// ParseRecord parses the full RECORD file contents.
func ParseRecord(contents string) (*Record, error) {
	r := &Record{byName: make(map[string]RecordEntry)}
	for _, line := range strings.Split(contents, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		e, err := ParseRecordLine(line)
		if err != nil {
			return nil, err
		}
		if _, dup := r.byName[e.Name]; !dup {
			r.order = append(r.order, e.Name)
		}
		r.byName[e.Name] = e
	}
	return r, nil
}

// Get looks up a record entry by member name.
func (r *Record) Get(name string) (RecordEntry, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// Names returns member names in RECORD order.
func (r *Record) Names() []string { return append([]string(nil), r.order...) }

// Len returns the number of entries.
func (r *Record) Len() int { return len(r.order) }
