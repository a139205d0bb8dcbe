package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// GameConf holds server configuration, loaded from YAML with flag and
// environment overrides applied by cmd/server.
type GameConf struct {
	// --- Identity ---
	WorldName string `yaml:"world_name"`

	// --- Stores ---
	WorldDB    string `yaml:"world_db"`    // world collection connection string (bolt path)
	AccountsDB string `yaml:"accounts_db"` // accounts collection connection string (bolt path)

	// --- Listeners ---
	TelnetPort int    `yaml:"telnet_port"` // default 8888
	WebPort    int    `yaml:"web_port"`    // WebSocket/HTTP port, default 4000
	WebHost    string `yaml:"web_host"`    // bind address, empty = all interfaces

	// --- TLS ---
	TLS     bool   `yaml:"tls"`
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
	Domain  string `yaml:"domain"`   // Let's Encrypt domain for the web listener
	CertDir string `yaml:"cert_dir"` // directory for generated certs

	// --- World content ---
	WorldDir string `yaml:"world_dir"` // world definition files (yaml/json/.g)
	TextDir  string `yaml:"text_dir"`  // connection text files (welcome, motd, quit)

	// --- Interpreter bounds ---
	DepthLimit   int `yaml:"depth_limit"`    // default 128
	BudgetMillis int `yaml:"budget_millis"`  // per-invocation wall clock, default 500
	TickMillis   int `yaml:"tick_millis"`    // tick scheduler period, default 1000
	FlushSeconds int `yaml:"flush_seconds"`  // write-back interval, default 60
	DirtyFlushAt int `yaml:"dirty_flush_at"` // dirty-count flush threshold, default 200

	// --- Sessions ---
	IdleTimeout  int `yaml:"idle_timeout"`  // seconds, default 3600
	OutboundSize int `yaml:"outbound_size"` // per-session outbound channel, default 64
	MaxRetries   int `yaml:"max_retries"`   // failed logins before disconnect, default 3

	// --- Auth ---
	JWTSecret string `yaml:"jwt_secret"` // auto-generated if empty
	JWTExpiry int    `yaml:"jwt_expiry"` // seconds, default 86400

	// --- Bootstrap ---
	AdminLogin    string `yaml:"admin_login"`    // default-admin bootstrap credentials
	AdminPassword string `yaml:"admin_password"` // only used when the account is missing

	// --- Scrollback ---
	ScrollbackDB        string `yaml:"scrollback_db"`        // SQLite path, empty = disabled
	ScrollbackRetention int    `yaml:"scrollback_retention"` // seconds, default 86400

	// --- Logging ---
	LogLevel string `yaml:"log_level"` // "debug" enables per-line input logging
}

// DefaultGameConf returns a GameConf with shipping defaults.
func DefaultGameConf() *GameConf {
	return &GameConf{
		WorldName:           "GAIA",
		TelnetPort:          8888,
		WebPort:             4000,
		DepthLimit:          128,
		BudgetMillis:        500,
		TickMillis:          1000,
		FlushSeconds:        60,
		DirtyFlushAt:        200,
		IdleTimeout:         3600,
		OutboundSize:        64,
		MaxRetries:          3,
		JWTExpiry:           86400,
		ScrollbackRetention: 86400,
		CertDir:             "certs",
	}
}

// LoadGameConf reads a YAML config file, filling unset fields with defaults.
func LoadGameConf(path string) (*GameConf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	gc := DefaultGameConf()
	if err := yaml.Unmarshal(data, gc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	gc.fillDefaults()
	return gc, nil
}

func (gc *GameConf) fillDefaults() {
	def := DefaultGameConf()
	if gc.TelnetPort == 0 {
		gc.TelnetPort = def.TelnetPort
	}
	if gc.WebPort == 0 {
		gc.WebPort = def.WebPort
	}
	if gc.DepthLimit == 0 {
		gc.DepthLimit = def.DepthLimit
	}
	if gc.BudgetMillis == 0 {
		gc.BudgetMillis = def.BudgetMillis
	}
	if gc.TickMillis == 0 {
		gc.TickMillis = def.TickMillis
	}
	if gc.FlushSeconds == 0 {
		gc.FlushSeconds = def.FlushSeconds
	}
	if gc.DirtyFlushAt == 0 {
		gc.DirtyFlushAt = def.DirtyFlushAt
	}
	if gc.IdleTimeout == 0 {
		gc.IdleTimeout = def.IdleTimeout
	}
	if gc.OutboundSize == 0 {
		gc.OutboundSize = def.OutboundSize
	}
	if gc.MaxRetries == 0 {
		gc.MaxRetries = def.MaxRetries
	}
	if gc.JWTExpiry == 0 {
		gc.JWTExpiry = def.JWTExpiry
	}
	if gc.ScrollbackRetention == 0 {
		gc.ScrollbackRetention = def.ScrollbackRetention
	}
	if gc.WorldName == "" {
		gc.WorldName = def.WorldName
	}
	if gc.CertDir == "" {
		gc.CertDir = def.CertDir
	}
}

// Budget returns the per-invocation wall-clock budget.
func (gc *GameConf) Budget() time.Duration {
	return time.Duration(gc.BudgetMillis) * time.Millisecond
}

// TickPeriod returns the tick scheduler period.
func (gc *GameConf) TickPeriod() time.Duration {
	return time.Duration(gc.TickMillis) * time.Millisecond
}
