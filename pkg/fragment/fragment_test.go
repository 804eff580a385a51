package fragment

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testHost     = "tserver-0"
	walKey       = "accumulo-wal/wal/tserver-0+9997/e2823e96-6e51-4657-b912-840c65f36a9a"
	compactKey   = "accumulo/accumulo/tables/+r/root_tablet/A0000005.rf_tmp"
	compactPart1 = "s3ablock-0001-accumuloEFSaccumuloEFStablesEFS+rEFSroot_tabletEFSA0000005.rf_tmp-5585275724905231424.tmp"
	compactPart2 = "s3ablock-0002-accumuloEFSaccumuloEFStablesEFS+rEFSroot_tabletEFSA0000005.rf_tmp-5585275724905231424.tmp"
)

func walFile(part string) string {
	return fmt.Sprintf("s3ablock-%s-accumulo-walEFSwalEFS%s+9997EFSe2823e96-6e51-4657-b912-840c65f36a9a-5585275724905231424.tmp", part, testHost)
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fileName string
		wantPart int
		wantKey  string
	}{
		{name: "wal part one", fileName: walFile("0001"), wantPart: 1, wantKey: walKey},
		{name: "wal part two", fileName: walFile("0002"), wantPart: 2, wantKey: walKey},
		{name: "wal part twelve", fileName: walFile("0012"), wantPart: 12, wantKey: walKey},
		{name: "five digit part", fileName: walFile("10000"), wantPart: 10000, wantKey: walKey},
		{name: "five digit padded part", fileName: walFile("00012"), wantPart: 12, wantKey: walKey},
		{name: "compaction part one", fileName: compactPart1, wantPart: 1, wantKey: compactKey},
		{name: "compaction part two", fileName: compactPart2, wantPart: 2, wantKey: compactKey},
		{name: "backslash key", fileName: "s3ablock-0003-dirEBSsubEFSfile-42.tmp", wantPart: 3, wantKey: `dir\sub/file`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n, err := Parse(tt.fileName)
			require.NoError(t, err)
			assert.Equal(t, tt.fileName, n.FileName)
			assert.Equal(t, tt.wantPart, n.PartNumber)
			assert.Equal(t, tt.wantKey, n.Key)
			assert.Equal(t, tt.wantPart == 1, n.IsPartOne())
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	names := []string{
		"",
		"random.txt",
		"s3ablock-001-key-1.tmp",
		"s3ablock-0001-key.tmp",
		"s3ablock-0001-key-1.dat",
		"s3ablock-0000-key-1.tmp",
		"xs3ablock-0001-key-1.tmp",
		"s3ablock-abcd-key-1.tmp",
	}

	for _, name := range names {
		_, err := Parse(name)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrMalformedName), name)
	}
}

func TestIsPartOne(t *testing.T) {
	t.Parallel()

	assert.True(t, IsPartOne(walFile("0001")))
	assert.False(t, IsPartOne(walFile("0002")))
	assert.False(t, IsPartOne(walFile("0012")))
	assert.False(t, IsPartOne(walFile("00012")))
	assert.False(t, IsPartOne(walFile("00010")))
	assert.True(t, IsPartOne(walFile("00001")))
	assert.True(t, IsPartOne("s3ablock-0001-missing-suffix"))
	assert.False(t, IsPartOne("s3ablock-00012-missing-suffix"))
	assert.True(t, IsPartOne(compactPart1))
	assert.False(t, IsPartOne(compactPart2))
	assert.False(t, IsPartOne("s3a"))
}

func TestKeyRoundTrip(t *testing.T) {
	t.Parallel()

	keys := []string{
		"plain",
		"a/b/c",
		`a\b\c`,
		`mixed/path\with/both\seps`,
		"/leading/and/trailing/",
		`\\double\\`,
		walKey,
		compactKey,
	}

	for _, key := range keys {
		name := FileName(key, 7, 1234)
		n, err := Parse(name)
		require.NoError(t, err, key)
		assert.Equal(t, key, n.Key)
		assert.Equal(t, 7, n.PartNumber)
		assert.Equal(t, key, DecodeKey(EncodeKey(key)))
	}
}

func TestWALPrefix(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "accumulo-wal/wal/tserver-0+9997/", WALPrefix("accumulo-wal/wal", testHost, DefaultServicePort))
	assert.Equal(t, "accumulo-wal/wal/tserver-0+9997/", WALPrefix("accumulo-wal/wal/", testHost, DefaultServicePort))
	assert.Equal(t, "wal/h+1234/", WALPrefix("wal", "h", 1234))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	prefix := WALPrefix("accumulo-wal/wal/", testHost, DefaultServicePort)

	tests := []struct {
		key  string
		want Classification
	}{
		{key: walKey, want: WriteAheadLog},
		{key: compactKey, want: CompactionTemp},
		{key: prefix + "segment.rf_tmp", want: WriteAheadLog},
		{key: "accumulo-wal/wal/other-host+9997/e2823e96", want: Unrecognized},
		{key: "accumulo/tables/1/A0001.rf", want: Unrecognized},
		{key: "", want: Unrecognized},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.key, prefix), tt.key)
	}

	assert.Equal(t, CompactionTemp, Classify(compactKey, ""))
	assert.Equal(t, "compaction_tmp", CompactionTemp.String())
}
