package zipfile

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildZip assembles a minimal single-disk ZIP archive containing one
// member, stored or DEFLATE-compressed, for Reader to parse.
func buildZip(t *testing.T, name string, data []byte, deflate bool) []byte {
	t.Helper()

	var payload []byte
	method := uint16(CompressNone)
	if deflate {
		var buf bytes.Buffer
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
		require.NoError(t, fw.Close())
		payload = buf.Bytes()
		method = CompressDeflate
	} else {
		payload = data
	}
	crc := crc32.ChecksumIEEE(data)

	var out bytes.Buffer

	localOffset := out.Len()
	lfh := make([]byte, 30)
	copy(lfh[0:4], lfhSig[:])
	binary.LittleEndian.PutUint16(lfh[10:12], method)
	binary.LittleEndian.PutUint32(lfh[16:20], crc)
	binary.LittleEndian.PutUint32(lfh[20:24], uint32(len(payload)))
	binary.LittleEndian.PutUint32(lfh[24:28], uint32(len(data)))
	binary.LittleEndian.PutUint16(lfh[26:28], uint16(len(name)))
	out.Write(lfh)
	out.WriteString(name)
	out.Write(payload)

	cdOffset := out.Len()
	cdh := make([]byte, 46)
	copy(cdh[0:4], cdhSig[:])
	binary.LittleEndian.PutUint16(cdh[10:12], method)
	binary.LittleEndian.PutUint32(cdh[16:20], crc)
	binary.LittleEndian.PutUint32(cdh[20:24], uint32(len(payload)))
	binary.LittleEndian.PutUint32(cdh[24:28], uint32(len(data)))
	binary.LittleEndian.PutUint16(cdh[28:30], uint16(len(name)))
	binary.LittleEndian.PutUint32(cdh[42:46], uint32(localOffset))
	out.Write(cdh)
	out.WriteString(name)

	eocd := make([]byte, 22)
	copy(eocd[0:4], eocdSig[:])
	binary.LittleEndian.PutUint16(eocd[10:12], 1)
	binary.LittleEndian.PutUint32(eocd[12:16], uint32(out.Len()-cdOffset))
	binary.LittleEndian.PutUint32(eocd[16:20], uint32(cdOffset))
	out.Write(eocd)

	return out.Bytes()
}

func TestReaderOpenStoredMember(t *testing.T) {
	raw := buildZip(t, "METADATA", []byte("Name: demo\nVersion: 1.0\n"), false)
	r, err := NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	assert.Equal(t, []string{"METADATA"}, r.Names())
	data, err := r.Open("METADATA")
	require.NoError(t, err)
	assert.Equal(t, "Name: demo\nVersion: 1.0\n", string(data))
}

func TestReaderOpenDeflatedMember(t *testing.T) {
	want := bytes.Repeat([]byte("ota-firmware-bundle-payload "), 50)
	raw := buildZip(t, "pkg/module.py", want, true)
	r, err := NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	e, ok := r.Entry("pkg/module.py")
	require.True(t, ok)
	assert.True(t, e.Compressed())

	got, err := r.Open("pkg/module.py")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReaderOpenRejectsCorruptedMember(t *testing.T) {
	name := "f.txt"
	raw := buildZip(t, name, []byte("hello"), false)
	// The member's data immediately follows its local file header and name;
	// flip its first byte so the CRC-32 no longer matches.
	dataOffset := 30 + len(name)
	raw[dataOffset] ^= 0xFF

	r, err := NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	_, err = r.Open("f.txt")
	require.Error(t, err)
	var bad *BadZipFile
	assert.ErrorAs(t, err, &bad)
}

func TestNewReaderRejectsBadSignature(t *testing.T) {
	raw := make([]byte, 22)
	_, err := NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.Error(t, err)
}

func TestNewReaderRejectsTooSmall(t *testing.T) {
	_, err := NewReader(bytes.NewReader(nil), 0)
	require.Error(t, err)
}
