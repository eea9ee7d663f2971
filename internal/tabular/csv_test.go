package tabular

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var header = []string{"Exchange", "Base", "Target", "Last"}

func writeFixture(t *testing.T, dir, name string, rows [][]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, WriteCSV(path, header, rows))
	return path
}

func TestWriteCSV_Escaping(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []string{"a", "b"}, [][]string{{`x,y`, `say "hi"`}}))
	assert.Equal(t, "a,b\n\"x,y\",\"say \"\"hi\"\"\"\n", buf.String())
}

func TestWriteCSV_RowWidthMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	assert.Error(t, WriteCSV(path, header, [][]string{{"only", "two"}}))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestReadCSV_RoundTrip(t *testing.T) {
	rows := [][]string{{"Binance", "BTC", "USDT", "64000.5"}, {"Kraken", "BTC", "USD", "63990"}}
	path := writeFixture(t, t.TempDir(), "out.csv", rows)

	h, got, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, header, h)
	assert.Equal(t, rows, got)
}

func TestReadCSV_Errors(t *testing.T) {
	dir := t.TempDir()
	_, _, err := ReadCSV(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, _, err = ReadCSV(empty)
	assert.Error(t, err)
}

func TestMerge_DedupFirstWins(t *testing.T) {
	dir := t.TempDir()
	a := writeFixture(t, dir, "btc_markets_all1.csv", [][]string{
		{"Binance", "BTC", "USDT", "1"},
		{"Kraken", "BTC", "USD", "2"},
	})
	b := writeFixture(t, dir, "btc_markets_all2.csv", [][]string{
		{"Binance", "BTC", "USDT", "1"},
		{"Kraken", "BTC", "USD", "3"},
		{"Bitstamp", "BTC", "EUR", "4"},
	})

	h, rows, stats, err := Merge([]string{a, b}, []string{"Exchange", "Base", "Target", "Last"})
	require.NoError(t, err)
	assert.Equal(t, header, h)
	assert.Len(t, rows, 4)
	assert.Equal(t, "2", rows[1][3])
	assert.Equal(t, "3", rows[2][3])
	assert.Equal(t, 5, stats.Read)
	assert.Equal(t, 4, stats.Kept)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, []FileCount{{Path: a, Rows: 2}, {Path: b, Rows: 3}}, stats.Files)

	_, rows, stats, err = Merge([]string{a, b}, []string{"Exchange"})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, "2", rows[1][3], "first Kraken row kept")
	assert.Equal(t, 2, stats.Duplicates)
}

func TestMerge_Errors(t *testing.T) {
	dir := t.TempDir()
	_, _, _, err := Merge(nil, nil)
	assert.ErrorIs(t, err, ErrNoFiles)

	a := writeFixture(t, dir, "a.csv", nil)
	_, _, _, err = Merge([]string{a}, []string{"Nope"})
	assert.Error(t, err)

	other := filepath.Join(dir, "b.csv")
	require.NoError(t, WriteCSV(other, []string{"x"}, nil))
	_, _, _, err = Merge([]string{a, other}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header", "differing headers are rejected, not unioned")
}

func TestGlob(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "btc_markets_all2.csv", nil)
	writeFixture(t, dir, "btc_markets_all1.csv", nil)
	writeFixture(t, dir, "btc_markets_all_combined.csv", nil)

	files, err := Glob(filepath.Join(dir, "btc_markets_all*.csv"), filepath.Join(dir, "btc_markets_all_combined.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "btc_markets_all1.csv"),
		filepath.Join(dir, "btc_markets_all2.csv"),
	}, files)
}
