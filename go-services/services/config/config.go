// Package config loads backtest configuration files with viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"anchor-backtest/go-services/services/candles"
	"anchor-backtest/go-services/services/engine"
)

type RuleConfig struct {
	Symbol    string  `mapstructure:"symbol" json:"symbol" validate:"required"`
	Timeframe string  `mapstructure:"timeframe" json:"timeframe" validate:"required"`
	Lag       int     `mapstructure:"lag" json:"lag" validate:"gte=0"`
	ChangePct float64 `mapstructure:"change_pct" json:"change_pct"`
	Direction string  `mapstructure:"direction" json:"direction" validate:"required,oneof=up down"`
}

// AnchorConfig declares an anchor series. Lag is accepted for compatibility
// with older files and ignored; rules carry their own lag.
type AnchorConfig struct {
	Symbol    string `mapstructure:"symbol" json:"symbol" validate:"required"`
	Timeframe string `mapstructure:"timeframe" json:"timeframe" validate:"required"`
	Lag       int    `mapstructure:"lag" json:"lag,omitempty"`
}

type TargetConfig struct {
	Symbols   []string `mapstructure:"symbols" json:"symbols"`
	Timeframe string   `mapstructure:"timeframe" json:"timeframe" validate:"required"`
}

type SweepConfig struct {
	Side   string  `mapstructure:"side" json:"side" validate:"omitempty,oneof=buy sell"`
	Rules  []int   `mapstructure:"rules" json:"rules" validate:"dive,gte=0"`
	Min    float64 `mapstructure:"min" json:"min"`
	Max    float64 `mapstructure:"max" json:"max" validate:"gtefield=Min"`
	Step   float64 `mapstructure:"step" json:"step" validate:"gt=0"`
	Column string  `mapstructure:"column" json:"column"`
}

type UniverseConfig struct {
	MinAvgQuoteVolume float64 `mapstructure:"min_avg_quote_volume" json:"min_avg_quote_volume" validate:"gte=0"`
}

// StrategyConfig is the part of the configuration that defines a run. The
// HTTP API accepts it as a JSON body.
type StrategyConfig struct {
	Target         TargetConfig   `mapstructure:"target" json:"target"`
	InitialCash    float64        `mapstructure:"initial_cash" json:"initial_cash" validate:"gt=0"`
	LagMode        string         `mapstructure:"lag_mode" json:"lag_mode" validate:"omitempty,oneof=trailing shifted"`
	PeriodsPerYear float64        `mapstructure:"periods_per_year" json:"periods_per_year" validate:"gte=0"`
	Anchors        []AnchorConfig `mapstructure:"anchors" json:"anchors" validate:"dive"`
	BuyRules       []RuleConfig   `mapstructure:"buy_rules" json:"buy_rules" validate:"required,min=1,dive"`
	SellRules      []RuleConfig   `mapstructure:"sell_rules" json:"sell_rules" validate:"dive"`
	Sweep          *SweepConfig   `mapstructure:"sweep" json:"sweep,omitempty" validate:"omitempty"`
	Universe       UniverseConfig `mapstructure:"universe" json:"universe"`
}

type ClickHouseConfig struct {
	Addr        []string      `mapstructure:"addr"`
	Database    string        `mapstructure:"database"`
	Table       string        `mapstructure:"table"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

type DataConfig struct {
	Driver     string           `mapstructure:"driver" validate:"oneof=csv clickhouse postgres"`
	Dir        string           `mapstructure:"dir" validate:"required_if=Driver csv"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
}

type OutputConfig struct {
	Path            string `mapstructure:"path"`
	Format          string `mapstructure:"format" validate:"oneof=csv arrow"`
	ClickHouseURL   string `mapstructure:"clickhouse_url"`
	ClickHouseTable string `mapstructure:"clickhouse_table"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type ServerConfig struct {
	HTTPPort int `mapstructure:"http_port" validate:"gt=0"`
	GRPCPort int `mapstructure:"grpc_port" validate:"gt=0"`
}

type Config struct {
	StrategyConfig `mapstructure:",squash"`

	Data    DataConfig    `mapstructure:"data"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
	Workers int           `mapstructure:"workers" validate:"gte=0"`
}

const EnvPrefix = "ANCHOR"

var validate = validator.New()

// Load reads the file at path (YAML, JSON or TOML by extension), applies
// defaults and ANCHOR_* environment overrides, and validates the result,
// including the engine checks on the resulting strategy. An empty path loads
// defaults and environment only.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	if err := engine.ValidateStrategy(cfg.Strategy()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadServer is Load for the HTTP service, whose strategies arrive per
// request: only the data, output, logging and server sections are checked.
func LoadServer(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	for _, section := range []any{&cfg.Data, &cfg.Output, &cfg.Logging, &cfg.Server} {
		if err := Validate(section); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("target.timeframe", "1H")
	v.SetDefault("initial_cash", engine.DefaultInitialCash)
	v.SetDefault("lag_mode", string(engine.LagTrailing))

	v.SetDefault("data.driver", "csv")
	v.SetDefault("data.dir", "Data")
	v.SetDefault("data.clickhouse.addr", []string{"localhost:9000"})
	v.SetDefault("data.clickhouse.database", "backtest")
	v.SetDefault("data.clickhouse.table", "candles")
	v.SetDefault("data.clickhouse.username", "default")
	v.SetDefault("data.clickhouse.dial_timeout", "10s")
	v.SetDefault("data.postgres.table", "candles")

	v.SetDefault("output.path", "results.csv")
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.clickhouse_table", "backtest.results")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 9091)
	v.SetDefault("workers", 0)
}

// Validate checks struct tags and reports every failing field in one error.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
	}
	return fmt.Errorf("invalid config: %s: %w", strings.Join(msgs, ", "), err)
}

func rules(in []RuleConfig) []engine.Rule {
	out := make([]engine.Rule, len(in))
	for i, r := range in {
		out[i] = engine.Rule{
			Symbol:    r.Symbol,
			Timeframe: r.Timeframe,
			Lag:       r.Lag,
			ChangePct: r.ChangePct,
			Direction: engine.Direction(r.Direction),
		}
	}
	return out
}

// Strategy converts the configuration into the engine's immutable value.
func (c StrategyConfig) Strategy() engine.Strategy {
	s := engine.Strategy{
		Timeframe:         c.Target.Timeframe,
		Symbols:           append([]string(nil), c.Target.Symbols...),
		InitialCash:       c.InitialCash,
		LagMode:           engine.LagMode(c.LagMode),
		PeriodsPerYear:    c.PeriodsPerYear,
		Rules:             engine.RuleSet{Buy: rules(c.BuyRules), Sell: rules(c.SellRules)},
		MinAvgQuoteVolume: c.Universe.MinAvgQuoteVolume,
	}
	for _, a := range c.Anchors {
		s.Anchors = append(s.Anchors, candles.SeriesKey{Symbol: a.Symbol, Timeframe: a.Timeframe})
	}
	if sw := c.Sweep; sw != nil {
		side := engine.SweepSide(sw.Side)
		if side == "" {
			side = engine.SweepBuy
		}
		column := sw.Column
		if column == "" {
			column = "cp"
		}
		s.Sweep = &engine.Sweep{
			Side:   side,
			Rules:  append([]int(nil), sw.Rules...),
			Min:    sw.Min,
			Max:    sw.Max,
			Step:   sw.Step,
			Column: column,
		}
	}
	return s
}

// SweepColumn is the result-table header of the swept value, empty without
// a sweep.
func (c StrategyConfig) SweepColumn() string {
	if c.Sweep == nil {
		return ""
	}
	if c.Sweep.Column == "" {
		return "cp"
	}
	return c.Sweep.Column
}
