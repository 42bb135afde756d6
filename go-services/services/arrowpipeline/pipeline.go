// Package arrowpipeline encodes backtest result tables as Apache Arrow IPC
// streams.
package arrowpipeline

import (
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"go.uber.org/zap"

	"anchor-backtest/go-services/services/engine"
)

// ColumnMetaKey holds the swept column name in the schema metadata.
const ColumnMetaKey = "param_column"

const DefaultBatchSize = 4096

// Config holds Arrow pipeline configuration
type Config struct {
	BatchSize int `mapstructure:"batch_size"`
}

// Pipeline converts result rows to and from Arrow IPC
type Pipeline struct {
	config     Config
	memoryPool memory.Allocator
	logger     *zap.Logger
}

// NewPipeline creates a new Arrow pipeline
func NewPipeline(config Config, logger *zap.Logger) *Pipeline {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		config:     config,
		memoryPool: memory.NewGoAllocator(),
		logger:     logger,
	}
}

// Schema is the result-table schema. param and sharpe_ratio are nullable.
func Schema(column string) *arrow.Schema {
	md := arrow.NewMetadata([]string{ColumnMetaKey}, []string{column})
	return arrow.NewSchema([]arrow.Field{
		{Name: "symbol", Type: arrow.BinaryTypes.String},
		{Name: "param", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "initial_cash", Type: arrow.PrimitiveTypes.Float64},
		{Name: "final_cash", Type: arrow.PrimitiveTypes.Float64},
		{Name: "total_return_pct", Type: arrow.PrimitiveTypes.Float64},
		{Name: "trade_count", Type: arrow.PrimitiveTypes.Int64},
		{Name: "win_rate_pct", Type: arrow.PrimitiveTypes.Float64},
		{Name: "sharpe_ratio", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "max_drawdown_pct", Type: arrow.PrimitiveTypes.Float64},
	}, &md)
}

func appendOptional(b *array.Float64Builder, v *float64) {
	if v == nil {
		b.AppendNull()
		return
	}
	b.Append(*v)
}

func (p *Pipeline) record(schema *arrow.Schema, rows []engine.ResultRow) arrow.Record {
	b := array.NewRecordBuilder(p.memoryPool, schema)
	defer b.Release()

	symbol := b.Field(0).(*array.StringBuilder)
	param := b.Field(1).(*array.Float64Builder)
	initial := b.Field(2).(*array.Float64Builder)
	final := b.Field(3).(*array.Float64Builder)
	ret := b.Field(4).(*array.Float64Builder)
	trades := b.Field(5).(*array.Int64Builder)
	win := b.Field(6).(*array.Float64Builder)
	sharpe := b.Field(7).(*array.Float64Builder)
	dd := b.Field(8).(*array.Float64Builder)

	for _, r := range rows {
		symbol.Append(r.Symbol)
		appendOptional(param, r.Param)
		initial.Append(r.InitialCash)
		final.Append(r.FinalCash)
		ret.Append(r.TotalReturnPct)
		trades.Append(int64(r.TradeCount))
		win.Append(r.WinRatePct)
		appendOptional(sharpe, r.SharpeRatio)
		dd.Append(r.MaxDrawdownPct)
	}
	return b.NewRecord()
}

// WriteRows streams rows to w as IPC record batches of at most BatchSize rows.
func (p *Pipeline) WriteRows(w io.Writer, rows []engine.ResultRow, column string) error {
	schema := Schema(column)
	writer := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(p.memoryPool))

	batches := 0
	for start := 0; start < len(rows); start += p.config.BatchSize {
		end := min(start+p.config.BatchSize, len(rows))
		rec := p.record(schema, rows[start:end])
		err := writer.Write(rec)
		rec.Release()
		if err != nil {
			writer.Close()
			return fmt.Errorf("failed to write Arrow record: %w", err)
		}
		batches++
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close Arrow writer: %w", err)
	}
	p.logger.Debug("Wrote Arrow result stream",
		zap.Int("rows", len(rows)),
		zap.Int("batches", batches))
	return nil
}

// ReadRows decodes a stream written by WriteRows.
func (p *Pipeline) ReadRows(r io.Reader) ([]engine.ResultRow, string, error) {
	reader, err := ipc.NewReader(r, ipc.WithAllocator(p.memoryPool))
	if err != nil {
		return nil, "", fmt.Errorf("failed to open Arrow stream: %w", err)
	}
	defer reader.Release()

	schema := reader.Schema()
	if !schema.Equal(Schema(columnOf(schema))) {
		return nil, "", errors.New("unexpected Arrow schema")
	}

	var rows []engine.ResultRow
	for reader.Next() {
		rec := reader.Record()
		symbol := rec.Column(0).(*array.String)
		param := rec.Column(1).(*array.Float64)
		initial := rec.Column(2).(*array.Float64)
		final := rec.Column(3).(*array.Float64)
		ret := rec.Column(4).(*array.Float64)
		trades := rec.Column(5).(*array.Int64)
		win := rec.Column(6).(*array.Float64)
		sharpe := rec.Column(7).(*array.Float64)
		dd := rec.Column(8).(*array.Float64)

		for i := 0; i < int(rec.NumRows()); i++ {
			rows = append(rows, engine.ResultRow{
				Symbol:         symbol.Value(i),
				Param:          optional(param, i),
				InitialCash:    initial.Value(i),
				FinalCash:      final.Value(i),
				TotalReturnPct: ret.Value(i),
				TradeCount:     int(trades.Value(i)),
				WinRatePct:     win.Value(i),
				SharpeRatio:    optional(sharpe, i),
				MaxDrawdownPct: dd.Value(i),
			})
		}
	}
	if err := reader.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, "", fmt.Errorf("failed to read Arrow record: %w", err)
	}
	return rows, columnOf(schema), nil
}

func optional(a *array.Float64, i int) *float64 {
	if a.IsNull(i) {
		return nil
	}
	v := a.Value(i)
	return &v
}

func columnOf(schema *arrow.Schema) string {
	md := schema.Metadata()
	if i := md.FindKey(ColumnMetaKey); i >= 0 {
		return md.Values()[i]
	}
	return ""
}
