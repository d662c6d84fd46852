// Package export writes query results to Parquet objects in the export
// bucket.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/querypilot/querypilot/internal/database"
)

type EncodeResult struct {
	Data     []byte
	RowCount int64
}

// parquetRow keeps rows schemaless: result columns vary per query, so each
// row carries its values and the column names as JSON arrays.
type parquetRow struct {
	RowNumber   int64  `parquet:"row_number"`
	RowJSON     string `parquet:"row_json"`
	ColumnsJSON string `parquet:"columns_json"`
}

func Encode(result database.QueryResult) (EncodeResult, error) {
	columns := result.Columns
	if columns == nil {
		columns = []string{}
	}
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return EncodeResult{}, fmt.Errorf("encode columns: %w", err)
	}

	rows := make([]parquetRow, 0, len(result.Rows))
	for i, values := range result.Rows {
		if len(values) != len(columns) {
			return EncodeResult{}, fmt.Errorf("row %d has %d values for %d columns", i+1, len(values), len(columns))
		}
		rowJSON, err := json.Marshal(values)
		if err != nil {
			return EncodeResult{}, fmt.Errorf("encode row %d: %w", i+1, err)
		}
		rows = append(rows, parquetRow{
			RowNumber:   int64(i + 1),
			RowJSON:     string(rowJSON),
			ColumnsJSON: string(columnsJSON),
		})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetRow](buf)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return EncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return EncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}
	return EncodeResult{Data: buf.Bytes(), RowCount: int64(len(rows))}, nil
}
