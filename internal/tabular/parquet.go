package tabular

import (
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"
	"github.com/vk/gridseed/internal/model"
)

// parquetWriter infers the Arrow schema from the first page that carries a
// value for each column; columns that never carry one are strings.
type parquetWriter struct {
	w       io.Writer
	columns []string
	alloc   memory.Allocator
	schema  *arrow.Schema
	writer  *pqarrow.FileWriter
}

func newParquetWriter(w io.Writer, columns []string) *parquetWriter {
	return &parquetWriter{w: w, columns: columns, alloc: memory.NewGoAllocator()}
}

func (p *parquetWriter) Write(rows []model.Record) error {
	if len(rows) == 0 {
		return nil
	}
	if p.writer == nil {
		if err := p.open(rows); err != nil {
			return err
		}
	}

	b := array.NewRecordBuilder(p.alloc, p.schema)
	defer b.Release()
	for _, row := range rows {
		for i, col := range p.columns {
			if err := appendValue(b.Field(i), row[col]); err != nil {
				return &WriterError{Format: Parquet, Op: "append_value", Err: fmt.Errorf("column %s: %w", col, err)}
			}
		}
	}
	rec := b.NewRecord()
	defer rec.Release()
	if err := p.writer.Write(rec); err != nil {
		return &WriterError{Format: Parquet, Op: "write", Err: err}
	}
	return nil
}

func (p *parquetWriter) open(sample []model.Record) error {
	fields := make([]arrow.Field, len(p.columns))
	for i, col := range p.columns {
		var dt arrow.DataType = arrow.BinaryTypes.String
		for _, row := range sample {
			if v := row[col]; v != nil {
				dt = arrowType(v)
				break
			}
		}
		fields[i] = arrow.Field{Name: col, Type: dt, Nullable: true}
	}
	p.schema = arrow.NewSchema(fields, nil)

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	fw, err := pqarrow.NewFileWriter(p.schema, p.w, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return &WriterError{Format: Parquet, Op: "create_writer", Err: err}
	}
	p.writer = fw
	return nil
}

func (p *parquetWriter) Close() error {
	if p.writer == nil {
		if err := p.open(nil); err != nil {
			return err
		}
	}
	if err := p.writer.Close(); err != nil {
		return &WriterError{Format: Parquet, Op: "close_writer", Err: err}
	}
	return nil
}

func arrowType(v any) arrow.DataType {
	switch v.(type) {
	case bool:
		return arrow.FixedWidthTypes.Boolean
	case int, int64, uint64:
		return arrow.PrimitiveTypes.Int64
	case float64:
		return arrow.PrimitiveTypes.Float64
	case []byte:
		return arrow.BinaryTypes.Binary
	}
	return arrow.BinaryTypes.String
}

func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch bb := b.(type) {
	case *array.BooleanBuilder:
		t, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		bb.Append(t)
	case *array.Int64Builder:
		switch t := v.(type) {
		case int64:
			bb.Append(t)
		case int:
			bb.Append(int64(t))
		case uint64:
			bb.Append(int64(t))
		case float64:
			bb.Append(int64(t))
		default:
			return fmt.Errorf("expected integer, got %T", v)
		}
	case *array.Float64Builder:
		switch t := v.(type) {
		case float64:
			bb.Append(t)
		case int64:
			bb.Append(float64(t))
		case int:
			bb.Append(float64(t))
		default:
			return fmt.Errorf("expected number, got %T", v)
		}
	case *array.BinaryBuilder:
		switch t := v.(type) {
		case []byte:
			bb.Append(t)
		case string:
			bb.AppendString(t)
		default:
			return fmt.Errorf("expected bytes, got %T", v)
		}
	case *array.StringBuilder:
		if t, ok := v.(time.Time); ok {
			bb.Append(t.Format(time.RFC3339Nano))
			return nil
		}
		s, err := formatText(v)
		if err != nil {
			return err
		}
		bb.Append(s)
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}
