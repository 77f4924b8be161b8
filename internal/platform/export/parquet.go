// Package export writes indicator results to Parquet for offline analysis.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// IndicatorRow is one (site, indicator) result of a reporting period.
type IndicatorRow struct {
	SiteCode     string `parquet:"site_code,dict"`
	SiteName     string `parquet:"site_name,dict"`
	IndicatorID  string `parquet:"indicator_id,dict"`
	Indicator    string `parquet:"indicator"`
	Total        int64  `parquet:"total"`
	Male0To14    int64  `parquet:"male_0_14"`
	Female0To14  int64  `parquet:"female_0_14"`
	MaleOver14   int64  `parquet:"male_over_14"`
	FemaleOver14 int64  `parquet:"female_over_14"`
	Error        string `parquet:"error,optional"`
	StartDate    string `parquet:"start_date"`
	EndDate      string `parquet:"end_date"`
}

// IndicatorWriter streams IndicatorRows into a zstd-compressed file.
type IndicatorWriter struct {
	closer io.Closer
	writer *parquet.GenericWriter[IndicatorRow]
	count  int
}

// NewIndicatorWriter creates filename and prepares the writer.
func NewIndicatorWriter(filename string) (*IndicatorWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create parquet file: %w", err)
	}
	w := newWriter(file)
	w.closer = file
	return w, nil
}

func newWriter(out io.Writer) *IndicatorWriter {
	return &IndicatorWriter{
		writer: parquet.NewGenericWriter[IndicatorRow](out,
			parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
			parquet.CreatedBy("preart-server", "1.0", ""),
		),
	}
}

func (w *IndicatorWriter) Write(rows []IndicatorRow) (int, error) {
	n, err := w.writer.Write(rows)
	w.count += n
	if err != nil {
		return n, fmt.Errorf("write parquet rows: %w", err)
	}
	return n, nil
}

// Close flushes the final row group and closes the file.
func (w *IndicatorWriter) Close() error {
	if err := w.writer.Close(); err != nil {
		if w.closer != nil {
			w.closer.Close()
		}
		return fmt.Errorf("close parquet writer: %w", err)
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// Count returns the number of rows written so far.
func (w *IndicatorWriter) Count() int {
	return w.count
}
