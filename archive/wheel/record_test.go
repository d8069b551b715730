package wheel

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecordLine(t *testing.T) {
	sum := sha256.Sum256([]byte("hello"))
	encoded := base64.RawURLEncoding.EncodeToString(sum[:])

	t.Run("full entry", func(t *testing.T) {
		e, err := ParseRecordLine("demo/__init__.py,sha256=" + encoded + ",5")
		require.NoError(t, err)
		assert.Equal(t, "demo/__init__.py", e.Name)
		assert.Equal(t, "sha256", e.Algo)
		assert.Equal(t, sum[:], e.Hash)
		assert.True(t, e.HasSize)
		assert.Equal(t, 5, e.Size)
	})

	t.Run("name containing commas", func(t *testing.T) {
		e, err := ParseRecordLine("weird,name.py,sha256=" + encoded + ",5")
		require.NoError(t, err)
		assert.Equal(t, "weird,name.py", e.Name)
	})

	t.Run("no hash or size, e.g. RECORD's own entry", func(t *testing.T) {
		e, err := ParseRecordLine("demo-1.0.dist-info/RECORD,,")
		require.NoError(t, err)
		assert.Equal(t, "demo-1.0.dist-info/RECORD", e.Name)
		assert.Equal(t, "", e.Algo)
		assert.False(t, e.HasSize)
		assert.Nil(t, e.Hasher())
	})

	t.Run("malformed line", func(t *testing.T) {
		_, err := ParseRecordLine("nocommasatall")
		assert.Error(t, err)
	})
}

func TestParseRecord(t *testing.T) {
	contents := "a.py,sha256=" + base64.RawURLEncoding.EncodeToString(make([]byte, 32)) + ",3\n" +
		"b.py,,\n" +
		"demo-1.0.dist-info/RECORD,,\n"

	r, err := ParseRecord(contents)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"a.py", "b.py", "demo-1.0.dist-info/RECORD"}, r.Names())

	e, ok := r.Get("a.py")
	require.True(t, ok)
	assert.Equal(t, "sha256", e.Algo)

	_, ok = r.Get("missing.py")
	assert.False(t, ok)
}

func TestRecordEntryHasherUnknownAlgo(t *testing.T) {
	e := RecordEntry{Algo: "blake2b"}
	assert.Nil(t, e.Hasher())
}
