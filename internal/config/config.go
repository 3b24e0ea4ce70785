package config

import (
	"TraceCorrelator/internal/model"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// AddressingConfig describes how node indices map to trace endpoints.
type AddressingConfig struct {
	Prefix       string `yaml:"prefix"`
	Suffix       string `yaml:"suffix"`
	NodeOffset   *int   `yaml:"node_offset"`
	SenderPort   uint16 `yaml:"sender_port"`
	ReceiverPort uint16 `yaml:"receiver_port"`
}

// CorrelatorConfig holds the configuration for the flow correlator.
type CorrelatorConfig struct {
	// RunID tags reports; partitions of one logical run must share it.
	// A random id is generated per run when empty.
	RunID       string           `yaml:"run_id"`
	TraceDir    string           `yaml:"trace_dir"`
	FilePattern string           `yaml:"file_pattern"`
	NumWorkers  int              `yaml:"num_workers"`
	Verbose     bool             `yaml:"verbose"`
	Addressing  AddressingConfig `yaml:"addressing"`
	Flows       []model.FlowPair `yaml:"flows"`
	Partition   model.Partition  `yaml:"partition"`
}

// TextConfig holds the configuration for the text writer.
type TextConfig struct {
	// Path of the report file; empty writes to stdout.
	Path string `yaml:"path"`
}

// GobConfig holds the configuration for the gob writer.
type GobConfig struct {
	RootPath string `yaml:"root_path"`
}

// ClickHouseConfig holds the configuration for the ClickHouse writer.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NATSConfig holds the connection settings shared by the NATS writer and the collector.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// BoltConfig holds the configuration for the bolt run store.
type BoltConfig struct {
	Path string `yaml:"path"`
}

// SMTPConfig holds the settings of the alert email notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"` // comma separated
}

// AlertConfig holds the thresholds of the alert writer. A zero threshold is not checked.
type AlertConfig struct {
	MaxLossRate     float64    `yaml:"max_loss_rate"`
	MaxDataLossRate float64    `yaml:"max_data_loss_rate"`
	MaxAverageDelay float64    `yaml:"max_average_delay"` // seconds
	SMTP            SMTPConfig `yaml:"smtp"`
}

// WriterDef defines a single report writer.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	Text       TextConfig       `yaml:"text"`
	Gob        GobConfig        `yaml:"gob"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	NATS       NATSConfig       `yaml:"nats"`
	Bolt       BoltConfig       `yaml:"bolt"`
	Alert      AlertConfig      `yaml:"alert"`
}

// APIConfig holds the configuration for the query API.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	GRPCAddr   string `yaml:"grpc_addr"`
}

// CollectorConfig holds the configuration for the partial report collector.
type CollectorConfig struct {
	NATS               NATSConfig `yaml:"nats"`
	ExpectedPartitions int        `yaml:"expected_partitions"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Correlator CorrelatorConfig `yaml:"correlator"`
	Writers    []WriterDef      `yaml:"writers"`
	API        APIConfig        `yaml:"api"`
	Collector  CollectorConfig  `yaml:"collector"`
}

const (
	DefaultFilePattern  = "%d.txt"
	DefaultPrefix       = "1.1"
	DefaultSuffix       = "2"
	DefaultNodeOffset   = 1
	DefaultSenderPort   = 49153
	DefaultReceiverPort = 50000
	DefaultNATSSubject  = "tracecorr.reports.partial"
	DefaultListenAddr   = ":8080"
	DefaultGRPCAddr     = ":9090"
	DefaultBoltPath     = "runs.db"
)

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills unset fields with the values of the reference simulation.
func (c *Config) ApplyDefaults() {
	cc := &c.Correlator
	if cc.TraceDir == "" {
		cc.TraceDir = "."
	}
	if cc.FilePattern == "" {
		cc.FilePattern = DefaultFilePattern
	}
	if cc.NumWorkers <= 0 {
		cc.NumWorkers = runtime.NumCPU()
	}
	a := &cc.Addressing
	if a.Prefix == "" {
		a.Prefix = DefaultPrefix
	}
	if a.Suffix == "" {
		a.Suffix = DefaultSuffix
	}
	if a.NodeOffset == nil {
		offset := DefaultNodeOffset
		a.NodeOffset = &offset
	}
	if a.SenderPort == 0 {
		a.SenderPort = DefaultSenderPort
	}
	if a.ReceiverPort == 0 {
		a.ReceiverPort = DefaultReceiverPort
	}
	if cc.Partition.Count <= 0 {
		cc.Partition.Count = 1
	}

	for i := range c.Writers {
		if c.Writers[i].NATS.Subject == "" {
			c.Writers[i].NATS.Subject = DefaultNATSSubject
		}
		if c.Writers[i].Bolt.Path == "" {
			c.Writers[i].Bolt.Path = DefaultBoltPath
		}
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = DefaultListenAddr
	}
	if c.API.GRPCAddr == "" {
		c.API.GRPCAddr = DefaultGRPCAddr
	}
	if c.Collector.NATS.Subject == "" {
		c.Collector.NATS.Subject = DefaultNATSSubject
	}
	if c.Collector.ExpectedPartitions <= 0 {
		c.Collector.ExpectedPartitions = 1
	}
}

// Validate checks the correlator section for values that would make every run fail.
func (c *Config) Validate() error {
	cc := c.Correlator
	if len(cc.Flows) == 0 {
		return fmt.Errorf("correlator.flows must not be empty")
	}
	addressing := c.Addressing()
	if addressing.SenderPort == addressing.ReceiverPort {
		return fmt.Errorf("sender_port and receiver_port must differ, both are %d", addressing.SenderPort)
	}
	for i, p := range cc.Flows {
		if p.Sender < 0 || p.Receiver < 0 {
			return fmt.Errorf("flow %d (%s) has a negative node index", i, p)
		}
		if _, err := addressing.Signatures(p); err != nil {
			return fmt.Errorf("flow %d (%s): %w", i, p, err)
		}
	}
	if cc.Partition.Index < 0 || cc.Partition.Index >= cc.Partition.Count {
		return fmt.Errorf("partition index %d out of range [0, %d)", cc.Partition.Index, cc.Partition.Count)
	}
	return nil
}

// Addressing converts the addressing section into its model form.
func (c *Config) Addressing() model.Addressing {
	a := c.Correlator.Addressing
	offset := DefaultNodeOffset
	if a.NodeOffset != nil {
		offset = *a.NodeOffset
	}
	return model.Addressing{
		Prefix:       a.Prefix,
		Suffix:       a.Suffix,
		NodeOffset:   offset,
		SenderPort:   a.SenderPort,
		ReceiverPort: a.ReceiverPort,
	}
}
