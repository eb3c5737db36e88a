package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	// Drain error channel
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_Basic(t *testing.T) {
	input := "a,b,c\n1,2,3\n4,5,6\n"
	header, rowCh, errCh, err := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, header)

	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "2", "3"}, rows[0])
	assert.Equal(t, []string{"4", "5", "6"}, rows[1])
}

func TestStreamCSV_RaggedRows(t *testing.T) {
	input := "a,b,c\n1\n1,2,3,4\n"
	_, rowCh, errCh, err := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)

	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], 1)
	assert.Len(t, rows[1], 4)
}

func TestStreamCSV_StripsBOM(t *testing.T) {
	input := "\ufeffCensus tract 2010 ID,Identified as disadvantaged\n18001030100,True\n"
	header, rowCh, errCh, err := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Census tract 2010 ID", header[0])

	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"18001030100", "True"}}, rows)
}

func TestStreamCSV_Windows1252(t *testing.T) {
	input := "name\nCaf\xe9 Solar\n"
	_, rowCh, errCh, err := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{Encoding: "windows-1252"})
	require.NoError(t, err)

	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, "Café Solar", rows[0][0])
}

func TestStreamCSV_UnknownEncoding(t *testing.T) {
	_, _, _, err := StreamCSV(context.Background(), strings.NewReader("a\n"), CSVOptions{Encoding: "klingon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported encoding")
}

func TestStreamCSV_Empty(t *testing.T) {
	_, _, _, err := StreamCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty input")
}

func TestStreamCSV_TrimSpaceAndDelimiter(t *testing.T) {
	input := " a | b \n 1 | 2 \n"
	header, rowCh, errCh, err := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{Delimiter: '|', TrimSpace: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, header)

	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2"}}, rows)
}

func TestStreamCSV_MalformedQuote(t *testing.T) {
	input := "a,b\n\"unterminated,2\n"
	_, rowCh, errCh, err := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)

	_, err = collectRows(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}

func TestStreamCSV_Cancelled(t *testing.T) {
	var b strings.Builder
	b.WriteString("a\n")
	for range 1000 {
		b.WriteString("x\n")
	}
	ctx, cancel := context.WithCancel(context.Background())
	_, rowCh, errCh, err := StreamCSV(ctx, strings.NewReader(b.String()), CSVOptions{})
	require.NoError(t, err)

	<-rowCh
	cancel()
	_, err = collectRows(t, rowCh, errCh)
	assert.ErrorIs(t, err, context.Canceled)
}
