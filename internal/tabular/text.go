package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/vk/gridseed/internal/model"
)

type csvWriter struct {
	w       *csv.Writer
	columns []string
}

func newCSVWriter(w io.Writer, columns []string) (*csvWriter, error) {
	cw := &csvWriter{w: csv.NewWriter(w), columns: columns}
	if err := cw.w.Write(columns); err != nil {
		return nil, &WriterError{Format: CSV, Op: "write_header", Err: err}
	}
	return cw, nil
}

func (c *csvWriter) Write(rows []model.Record) error {
	line := make([]string, len(c.columns))
	for _, row := range rows {
		for i, col := range c.columns {
			s, err := formatText(row[col])
			if err != nil {
				return &WriterError{Format: CSV, Op: "format", Err: err}
			}
			line[i] = s
		}
		if err := c.w.Write(line); err != nil {
			return &WriterError{Format: CSV, Op: "write", Err: err}
		}
	}
	return nil
}

func (c *csvWriter) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return &WriterError{Format: CSV, Op: "flush", Err: err}
	}
	return nil
}

// formatText renders a value as a single CSV cell.
func formatText(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case bool:
		return strconv.FormatBool(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case int:
		return strconv.Itoa(t), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case time.Time:
		return t.Format(time.RFC3339Nano), nil
	}
	b, err := json.Marshal(v)
	return string(b), err
}

// jsonWriter writes JSON lines, keeping the column order of the table.
type jsonWriter struct {
	w       *bufio.Writer
	columns []string
	buf     bytes.Buffer
}

func newJSONWriter(w io.Writer, columns []string) *jsonWriter {
	return &jsonWriter{w: bufio.NewWriter(w), columns: columns}
}

func (j *jsonWriter) Write(rows []model.Record) error {
	for _, row := range rows {
		j.buf.Reset()
		j.buf.WriteByte('{')
		for i, col := range j.columns {
			if i > 0 {
				j.buf.WriteByte(',')
			}
			key, _ := json.Marshal(col)
			j.buf.Write(key)
			j.buf.WriteByte(':')
			val, err := json.Marshal(jsonValue(row[col]))
			if err != nil {
				return &WriterError{Format: JSON, Op: "marshal", Err: err}
			}
			j.buf.Write(val)
		}
		j.buf.WriteString("}\n")
		if _, err := j.w.Write(j.buf.Bytes()); err != nil {
			return &WriterError{Format: JSON, Op: "write", Err: err}
		}
	}
	return nil
}

func (j *jsonWriter) Close() error {
	if err := j.w.Flush(); err != nil {
		return &WriterError{Format: JSON, Op: "flush", Err: err}
	}
	return nil
}

func jsonValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
