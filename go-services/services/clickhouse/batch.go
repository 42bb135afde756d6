package clickhouse

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"anchor-backtest/go-services/services/engine"
)

// ResultsDDL is the table ResultWriter inserts into.
func ResultsDDL(database, table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			job_id String,
			symbol String,
			param Nullable(Float64),
			initial_cash Float64,
			final_cash Float64,
			total_return_pct Float64,
			trade_count UInt32,
			win_rate_pct Float64,
			sharpe_ratio Nullable(Float64),
			max_drawdown_pct Float64,
			created_at DateTime64(3)
		)
		ENGINE = MergeTree
		ORDER BY (job_id, symbol)
	`, database, table)
}

type resultRecord struct {
	JobID          string   `json:"job_id"`
	Symbol         string   `json:"symbol"`
	Param          *float64 `json:"param"`
	InitialCash    float64  `json:"initial_cash"`
	FinalCash      float64  `json:"final_cash"`
	TotalReturnPct float64  `json:"total_return_pct"`
	TradeCount     int      `json:"trade_count"`
	WinRatePct     float64  `json:"win_rate_pct"`
	SharpeRatio    *float64 `json:"sharpe_ratio"`
	MaxDrawdownPct float64  `json:"max_drawdown_pct"`
	CreatedAt      string   `json:"created_at"`
}

// ResultWriter handles ClickHouse HTTP batch inserts of result rows with
// gzip compression.
type ResultWriter struct {
	baseURL    string
	table      string
	username   string
	password   string
	jobID      string
	httpClient *http.Client
	buffer     []resultRecord
	batchSize  int
	logger     *zap.Logger
}

// NewResultWriter writes rows of one job into table (database.table) through
// the HTTP interface at baseURL.
func NewResultWriter(baseURL, table, username, password, jobID string, batchSize int, logger *zap.Logger) *ResultWriter {
	if batchSize <= 0 {
		batchSize = 10000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultWriter{
		baseURL:   baseURL,
		table:     table,
		username:  username,
		password:  password,
		jobID:     jobID,
		batchSize: batchSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		buffer: make([]resultRecord, 0, batchSize),
		logger: logger,
	}
}

// EnsureTable creates the database and result table if missing. The table
// must be given as database.table.
func (c *ResultWriter) EnsureTable(ctx context.Context) error {
	database, table, ok := strings.Cut(c.table, ".")
	if !ok {
		return fmt.Errorf("result table %q must be database.table", c.table)
	}
	if err := checkIdent("database", database); err != nil {
		return err
	}
	if err := checkIdent("table", table); err != nil {
		return err
	}
	if err := c.exec(ctx, "CREATE DATABASE IF NOT EXISTS "+database); err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	if err := c.exec(ctx, ResultsDDL(database, table)); err != nil {
		return fmt.Errorf("create result table: %w", err)
	}
	return nil
}

// exec posts a statement as the request body.
func (c *ResultWriter) exec(ctx context.Context, statement string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", strings.NewReader(statement))
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("clickhouse error %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *ResultWriter) Add(ctx context.Context, row engine.ResultRow) error {
	c.buffer = append(c.buffer, resultRecord{
		JobID:          c.jobID,
		Symbol:         row.Symbol,
		Param:          row.Param,
		InitialCash:    row.InitialCash,
		FinalCash:      row.FinalCash,
		TotalReturnPct: row.TotalReturnPct,
		TradeCount:     row.TradeCount,
		WinRatePct:     row.WinRatePct,
		SharpeRatio:    row.SharpeRatio,
		MaxDrawdownPct: row.MaxDrawdownPct,
		CreatedAt:      time.Now().UTC().Format("2006-01-02 15:04:05.000"),
	})
	if len(c.buffer) >= c.batchSize {
		return c.Flush(ctx)
	}
	return nil
}

// Write adds every row and flushes the remainder.
func (c *ResultWriter) Write(ctx context.Context, rows []engine.ResultRow) error {
	for _, r := range rows {
		if err := c.Add(ctx, r); err != nil {
			return err
		}
	}
	return c.Flush(ctx)
}

func (c *ResultWriter) Flush(ctx context.Context) error {
	if len(c.buffer) == 0 {
		return nil
	}

	// JSONEachRow: one JSON object per line
	var buf bytes.Buffer
	gzWriter := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gzWriter)
	for _, rec := range c.buffer {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("gzip error: %w", err)
	}

	query := fmt.Sprintf("INSERT INTO %s FORMAT JSONEachRow", c.table)
	settings := "input_format_null_as_default=1&date_time_input_format=best_effort"
	u := fmt.Sprintf("%s/?query=%s&%s", c.baseURL, url.QueryEscape(query), settings)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Content-Encoding", "gzip")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("clickhouse error %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("Flushed result rows", zap.String("table", c.table), zap.Int("rows", len(c.buffer)))
	c.buffer = c.buffer[:0]
	return nil
}

func (c *ResultWriter) Close(ctx context.Context) error {
	return c.Flush(ctx)
}
