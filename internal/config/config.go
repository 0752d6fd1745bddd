package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sealbid/internal/auction"
	"github.com/roach88/sealbid/internal/registry"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SEALBID_"

// Config is a validated deployment configuration.
type Config struct {
	Round1Close time.Time
	Round2Close time.Time
	SupplyCap   uint64
	UnitScale   decimal.Decimal

	// Admin may change the signer registry. Zero means nobody can.
	Admin   common.Address
	Signers []Signer

	// Database is the journal path. Empty means no journal.
	Database string
	Kafka    Kafka
}

// Signer is a certificate signer registered at startup.
type Signer struct {
	Address common.Address
	Label   string
}

// Kafka configures receipt publication. Empty Brokers disables it.
type Kafka struct {
	Brokers []string
	Topic   string
}

// file is the on-disk shape. Every field is overridable from the
// environment, e.g. SEALBID_SUPPLY_CAP or SEALBID_KAFKA_BROKERS.
type file struct {
	Round1Close string       `yaml:"round1_close" env:"ROUND1_CLOSE"`
	Round2Close string       `yaml:"round2_close" env:"ROUND2_CLOSE"`
	SupplyCap   uint64       `yaml:"supply_cap" env:"SUPPLY_CAP"`
	UnitScale   string       `yaml:"unit_scale" env:"UNIT_SCALE"`
	Admin       string       `yaml:"admin" env:"ADMIN"`
	Signers     []fileSigner `yaml:"signers"`
	Database    string       `yaml:"database" env:"DATABASE"`
	Kafka       fileKafka    `yaml:"kafka" envPrefix:"KAFKA_"`
}

type fileSigner struct {
	Address string `yaml:"address"`
	Label   string `yaml:"label"`
}

type fileKafka struct {
	Brokers []string `yaml:"brokers" env:"BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic" env:"TOPIC"`
}

// SchemaError is a config file rejected by the CUE schema.
type SchemaError struct {
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Load reads path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	f, err := decode(path, data)
	if err != nil {
		return nil, err
	}
	if err := env.ParseWithOptions(&f, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config env overrides: %w", err)
	}
	return f.build()
}

// Parse decodes and validates data without environment overrides. name
// is used in error positions.
func Parse(name string, data []byte) (*Config, error) {
	f, err := decode(name, data)
	if err != nil {
		return nil, err
	}
	return f.build()
}

func decode(name string, data []byte) (file, error) {
	if err := checkSchema(name, data); err != nil {
		return file{}, err
	}

	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return file{}, fmt.Errorf("decode config %s: %w", name, err)
	}
	return f, nil
}

// checkSchema unifies the YAML document with #Config.
func checkSchema(name string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	expr, err := cueyaml.Extract(name, data)
	if err != nil {
		return fmt.Errorf("parse config %s: %w", name, err)
	}
	doc := ctx.BuildFile(expr)
	if err := doc.Err(); err != nil {
		return schemaError(err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return schemaError(err)
	}
	return nil
}

// schemaError keeps the first CUE error and its position.
func schemaError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &SchemaError{Message: err.Error()}
	}
	first := errs[0]
	se := &SchemaError{Message: first.Error()}
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		se.Pos = pos[0]
	}
	return se
}

func (f file) build() (*Config, error) {
	var errs []error
	c := &Config{
		SupplyCap: f.SupplyCap,
		Database:  f.Database,
		Kafka:     Kafka{Brokers: f.Kafka.Brokers, Topic: f.Kafka.Topic},
		UnitScale: decimal.NewFromInt(1),
	}

	var err error
	if c.Round1Close, err = time.Parse(time.RFC3339Nano, f.Round1Close); err != nil {
		errs = append(errs, fmt.Errorf("round1_close: %w", err))
	}
	if c.Round2Close, err = time.Parse(time.RFC3339Nano, f.Round2Close); err != nil {
		errs = append(errs, fmt.Errorf("round2_close: %w", err))
	}
	if f.UnitScale != "" {
		if c.UnitScale, err = decimal.NewFromString(f.UnitScale); err != nil {
			errs = append(errs, fmt.Errorf("unit_scale: %w", err))
		}
	}
	if f.Admin != "" {
		if !common.IsHexAddress(f.Admin) {
			errs = append(errs, fmt.Errorf("admin: invalid address %q", f.Admin))
		}
		c.Admin = common.HexToAddress(f.Admin)
	}
	for i, s := range f.Signers {
		if !common.IsHexAddress(s.Address) {
			errs = append(errs, fmt.Errorf("signers[%d]: invalid address %q", i, s.Address))
			continue
		}
		c.Signers = append(c.Signers, Signer{Address: common.HexToAddress(s.Address), Label: s.Label})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the cross-field rules the schema cannot express.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Auction().Validate(); err != nil {
		errs = append(errs, err)
	}
	if !c.UnitScale.IsPositive() {
		errs = append(errs, fmt.Errorf("unit_scale must be positive, got %s", c.UnitScale))
	}
	if len(c.Signers) > 0 && c.Admin == (common.Address{}) {
		errs = append(errs, errors.New("signers require an admin"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka topic is required when brokers are set"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Auction is the auction's share of the configuration.
func (c *Config) Auction() auction.Config {
	return auction.Config{
		Round1Close: c.Round1Close,
		Round2Close: c.Round2Close,
		SupplyCap:   c.SupplyCap,
		UnitScale:   c.UnitScale,
	}
}

// Registry builds the signer registry with every configured signer added
// by the admin.
func (c *Config) Registry() (*registry.Registry, error) {
	reg := registry.New(c.Admin)
	for _, s := range c.Signers {
		if err := reg.AddKey(c.Admin, s.Address, s.Label); err != nil {
			return nil, fmt.Errorf("register signer %s: %w", s.Address.Hex(), err)
		}
	}
	return reg, nil
}
