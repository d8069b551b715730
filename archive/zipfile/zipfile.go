// Package zipfile reads ZIP archives from an io.ReaderAt, the transport for
// OTA update bundles. It is a from-scratch reader rather than archive/zip:
// firmware bundles are single-disk, uncompressed or DEFLATE-only, and
// reading the end-of-central-directory record and central directory by hand
// avoids pulling in the full archive/zip feature surface.
package zipfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
)

// Compression methods this reader understands. Anything else fails Open.
const (
	CompressNone    = 0
	CompressDeflate = 8
)

var (
	eocdSig = [4]byte{'P', 'K', 0x05, 0x06}
	cdhSig  = [4]byte{'P', 'K', 0x01, 0x02}
	lfhSig  = [4]byte{'P', 'K', 0x03, 0x04}
)

// eocdSize is the fixed part of the end-of-central-directory record (no
// trailing comment): signature(4) disk#(2) cd-disk#(2) disk-entries(2)
// total-entries(2) cd-size(4) cd-offset(4) comment-len(2).
const eocdSize = 22

// cdhSize is the fixed part of a central directory file header, before the
// variable-length name/extra/comment fields.
const cdhSize = 46

// localHeaderFixedSize is the fixed part of a local file header, before the
// variable-length name/extra fields.
const localHeaderFixedSize = 30

// BadZipFile reports that the archive's structure violates the ZIP format
// (bad signature, multi-disk, truncated) or that a member's data failed its
// CRC-32 check.
type BadZipFile struct {
	Reason string
}

func (e *BadZipFile) Error() string { return "zipfile: " + e.Reason }

// Entry is one central directory record.
type Entry struct {
	Name              string
	CompressMethod    uint16
	CRC32             uint32
	CompressedSize    uint32
	UncompressedSize  uint32
	localHeaderOffset uint32
}

// Compressed reports whether the entry's data is DEFLATE-compressed rather
// than stored verbatim.
func (e *Entry) Compressed() bool { return e.CompressMethod != CompressNone }

func (e *Entry) String() string {
	return fmt.Sprintf("<Entry name=%s compressed=%v size=%d offset=%d>",
		e.Name, e.Compressed(), e.UncompressedSize, e.localHeaderOffset)
}

// Reader is an opened ZIP archive: the central directory has been parsed and
// member data is read lazily by Open, over io.ReaderAt instead of a
// seekable file object.
type Reader struct {
	ra      io.ReaderAt
	size    int64
	entries map[string]*Entry
	order   []string
}

// NewReader parses the end-of-central-directory record and central
// directory of ra, which spans size bytes.
func NewReader(ra io.ReaderAt, size int64) (*Reader, error) {
	if size < eocdSize {
		return nil, &BadZipFile{Reason: "file too small to contain an EOCD record"}
	}

	eocd := make([]byte, eocdSize)
	if _, err := ra.ReadAt(eocd, size-eocdSize); err != nil {
		return nil, fmt.Errorf("zipfile: reading EOCD: %w", err)
	}
	if [4]byte(eocd[0:4]) != eocdSig {
		return nil, &BadZipFile{Reason: "EOCD signature mismatch (comment present, or not a ZIP)"}
	}
	diskNum := binary.LittleEndian.Uint16(eocd[4:6])
	if diskNum != 0 {
		return nil, &BadZipFile{Reason: "multipart/disk ZIPs not supported"}
	}
	entryCount := binary.LittleEndian.Uint16(eocd[10:12])
	cdOffset := binary.LittleEndian.Uint32(eocd[16:20])

	r := &Reader{ra: ra, size: size, entries: make(map[string]*Entry, entryCount)}

	off := int64(cdOffset)
	for i := 0; i < int(entryCount); i++ {
		hdr := make([]byte, cdhSize)
		if _, err := ra.ReadAt(hdr, off); err != nil {
			return nil, fmt.Errorf("zipfile: reading central directory entry %d: %w", i, err)
		}
		if [4]byte(hdr[0:4]) != cdhSig {
			return nil, &BadZipFile{Reason: "central directory entry signature mismatch, ZIP corrupt?"}
		}

		compressMethod := binary.LittleEndian.Uint16(hdr[10:12])
		crc := binary.LittleEndian.Uint32(hdr[16:20])
		compressedSize := binary.LittleEndian.Uint32(hdr[20:24])
		uncompressedSize := binary.LittleEndian.Uint32(hdr[24:28])
		nameLen := binary.LittleEndian.Uint16(hdr[28:30])
		extraLen := binary.LittleEndian.Uint16(hdr[30:32])
		commentLen := binary.LittleEndian.Uint16(hdr[32:34])
		localOffset := binary.LittleEndian.Uint32(hdr[42:46])

		name := make([]byte, nameLen)
		if _, err := ra.ReadAt(name, off+cdhSize); err != nil {
			return nil, fmt.Errorf("zipfile: reading entry %d name: %w", i, err)
		}

		e := &Entry{
			Name:              string(name),
			CompressMethod:    compressMethod,
			CRC32:             crc,
			CompressedSize:    compressedSize,
			UncompressedSize:  uncompressedSize,
			localHeaderOffset: localOffset,
		}
		r.entries[e.Name] = e
		r.order = append(r.order, e.Name)

		off += int64(cdhSize) + int64(nameLen) + int64(extraLen) + int64(commentLen)
	}

	return r, nil
}

// Names returns the archive's entry names in central-directory order.
func (r *Reader) Names() []string { return append([]string(nil), r.order...) }

// Entry looks up a member by name.
func (r *Reader) Entry(name string) (*Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Open reads and decompresses one member's full contents, validating its
// CRC-32. Rather than trust the central directory's filename_len/extra_
// field_len to locate member data, Open re-reads the member's own local
// file header and uses its length fields: a defensively correct ZIP reader
// cannot assume the two headers agree.
func (r *Reader) Open(name string) ([]byte, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("zipfile: no such entry %q", name)
	}

	lfh := make([]byte, localHeaderFixedSize)
	if _, err := r.ra.ReadAt(lfh, int64(e.localHeaderOffset)); err != nil {
		return nil, fmt.Errorf("zipfile: reading local header for %q: %w", name, err)
	}
	if [4]byte(lfh[0:4]) != lfhSig {
		return nil, &BadZipFile{Reason: fmt.Sprintf("local file header signature mismatch for %q", name)}
	}
	nameLen := binary.LittleEndian.Uint16(lfh[26:28])
	extraLen := binary.LittleEndian.Uint16(lfh[28:30])

	dataOffset := int64(e.localHeaderOffset) + localHeaderFixedSize + int64(nameLen) + int64(extraLen)
	comp := make([]byte, e.CompressedSize)
	if _, err := r.ra.ReadAt(comp, dataOffset); err != nil {
		return nil, fmt.Errorf("zipfile: reading data for %q: %w", name, err)
	}

	var data []byte
	switch e.CompressMethod {
	case CompressNone:
		data = comp
	case CompressDeflate:
		fr := flate.NewReader(bytes.NewReader(comp))
		defer fr.Close()
		out, err := io.ReadAll(fr)
		if err != nil {
			return nil, fmt.Errorf("zipfile: inflating %q: %w", name, err)
		}
		data = out
	default:
		return nil, &BadZipFile{Reason: fmt.Sprintf("unsupported compression method %d for %q", e.CompressMethod, name)}
	}

	if crc32.ChecksumIEEE(data) != e.CRC32 {
		return nil, &BadZipFile{Reason: fmt.Sprintf("bad CRC-32 for %q", name)}
	}
	return data, nil
}
