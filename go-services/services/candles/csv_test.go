package candles

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSVWithHeader(t *testing.T) {
	in := "timestamp,open,high,low,close,volume\n" +
		"2000,11,12,10,11.5,3\n" +
		"1000,10,11,9,10.5,2\n"
	bars, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, int64(1000), bars[0].Timestamp)
	assert.Equal(t, 10.5, bars[0].Close)
	assert.Equal(t, 11.5, bars[1].Close)
}

func TestReadCSVHeaderless(t *testing.T) {
	in := "1000,10,11,9,10.5,2\n2000,11,12,10,11.5,3\n"
	bars, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}

func TestReadCSVNamedColumnsAnyOrder(t *testing.T) {
	in := "Open time,Close,Open,High,Low,Volume\n" +
		"1000,10.5,10,11,9,2\n"
	bars, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, Candle{Timestamp: 1000, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 2}, bars[0])
}

func TestReadCSVSkipsBadRowsAndDedupsKeepingLast(t *testing.T) {
	in := "timestamp,open,high,low,close,volume\n" +
		"1000,10,11,9,10,1\n" +
		"oops,1,1,1,1,1\n" +
		"1000,20,21,19,20,1\n" +
		"3000,x,1,1,1,1\n"
	bars, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 20.0, bars[0].Close)
}

func TestReadCSVStripsUTF8BOM(t *testing.T) {
	in := "\ufefftimestamp,open,high,low,close,volume\n1000,1,1,1,1,1\n"
	bars, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, bars, 1)
}

func TestCSVStoreLoadAndSymbols(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []Candle{{Timestamp: 1, Open: 1, High: 1, Low: 1, Close: 1}}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BTC_1H.csv"), buf.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ETH_1H.csv"), buf.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ETH_4H.csv"), buf.Bytes(), 0o644))

	store := NewCSVStore(dir)
	syms, err := store.Symbols(context.Background(), "1H")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ETH"}, syms)

	bars, err := store.Load(context.Background(), "ETH", "4H")
	require.NoError(t, err)
	assert.Len(t, bars, 1)

	_, err = store.Load(context.Background(), "SOL", "1H")
	assert.ErrorIs(t, err, ErrSeriesNotFound)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	bars := []Candle{
		{Timestamp: 3600000, Open: 1.25, High: 1.5, Low: 1, Close: 1.4, Volume: 100},
		{Timestamp: 7200000, Open: 1.4, High: 1.6, Low: 1.3, Close: 1.55, Volume: 80},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, bars))
	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, bars, got)
}
