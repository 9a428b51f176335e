package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/unitshift/constants"
)

// Config holds all application configuration
type Config struct {
	Run        RunConfig
	Database   DatabaseConfig
	Server     ServerConfig
	Automation AutomationConfig
}

// RunConfig holds the batch parameters chosen by the operator
type RunConfig struct {
	ReplacementDigit string
	Debug            bool
	InputDir         string
	OutputDir        string
	Formats          []string // empty means every supported kind
	ReportPath       string
	LogFormat        string // json|text
}

// DatabaseConfig holds run-ledger configuration
type DatabaseConfig struct {
	DSN             string // postgres URL; takes precedence over Path
	Path            string // sqlite file
	InMemory        bool
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds daemon configuration
type ServerConfig struct {
	GRPCAddr string
	WatchDir string
	Debounce time.Duration
}

// AutomationConfig names the external applications driven over COM
type AutomationConfig struct {
	DrawingProgID      string
	DrawingProcess     string
	SketchProgID       string
	SketchProcess      string
	SpreadsheetProgID  string
	SpreadsheetProcess string
	LicensePath        string // exported as INGR_LICENSE_PATH before the sketch application starts
}

func defaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			ReplacementDigit: "1",
			LogFormat:        "json",
		},
		Database: DatabaseConfig{
			Path:            "unitshift.db",
			MaxConns:        4,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr: ":8080",
			Debounce: 750 * time.Millisecond,
		},
		Automation: AutomationConfig{
			DrawingProgID:      "AutoCAD.Application",
			DrawingProcess:     "acad",
			SketchProgID:       "Shape2DServer.Application",
			SketchProcess:      "Shape2DServer",
			SpreadsheetProgID:  "Excel.Application",
			SpreadsheetProcess: "EXCEL",
		},
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return loadConfig(defaultConfig())
}

// LoadConfigFile layers a YAML/JSON config file under the environment.
func LoadConfigFile(path string) (*Config, error) {
	base := defaultConfig()
	fc, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	fc.apply(base)
	return loadConfig(base), nil
}

func loadConfig(base *Config) *Config {
	return &Config{
		Run: RunConfig{
			ReplacementDigit: getEnv("REPLACEMENT_DIGIT", base.Run.ReplacementDigit),
			Debug:            getEnvAsBool("DEBUG", base.Run.Debug),
			InputDir:         getEnv("INPUT_DIR", base.Run.InputDir),
			OutputDir:        getEnv("OUTPUT_DIR", base.Run.OutputDir),
			Formats:          getEnvAsList("FORMATS", base.Run.Formats),
			ReportPath:       getEnv("REPORT_PATH", base.Run.ReportPath),
			LogFormat:        getEnv("LOG_FORMAT", base.Run.LogFormat),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", base.Database.DSN),
			Path:            getEnv("DB_PATH", base.Database.Path),
			InMemory:        getEnvAsBool("DB_INMEM", base.Database.InMemory),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", base.Database.MaxConns),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", base.Database.MinConns),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", base.Database.MaxConnLifetime),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", base.Database.MaxConnIdleTime),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", base.Database.DialTimeout),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", base.Server.GRPCAddr),
			WatchDir: getEnv("WATCH_DIR", base.Server.WatchDir),
			Debounce: getEnvAsDuration("WATCH_DEBOUNCE", base.Server.Debounce),
		},
		Automation: AutomationConfig{
			DrawingProgID:      getEnv("DRAWING_PROGID", base.Automation.DrawingProgID),
			DrawingProcess:     getEnv("DRAWING_PROCESS", base.Automation.DrawingProcess),
			SketchProgID:       getEnv("SKETCH_PROGID", base.Automation.SketchProgID),
			SketchProcess:      getEnv("SKETCH_PROCESS", base.Automation.SketchProcess),
			SpreadsheetProgID:  getEnv("SPREADSHEET_PROGID", base.Automation.SpreadsheetProgID),
			SpreadsheetProcess: getEnv("SPREADSHEET_PROCESS", base.Automation.SpreadsheetProcess),
			LicensePath:        getEnv("INGR_LICENSE_PATH", base.Automation.LicensePath),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Kinds resolves the configured format filter. An empty filter selects every kind.
func (c *Config) Kinds() (map[constants.DocKind]bool, error) {
	out := make(map[constants.DocKind]bool)
	if len(c.Run.Formats) == 0 {
		for _, k := range constants.AsStringSlice() {
			out[constants.DocKind(k)] = true
		}
		return out, nil
	}
	for _, f := range c.Run.Formats {
		k, ok := constants.Canonicalize(f)
		if !ok {
			return nil, ConfigFault("unknown format "+strconv.Quote(f), ErrInvalidInput)
		}
		out[k] = true
	}
	return out, nil
}

// Validate checks what a batch run needs before any file is touched
func (c *Config) Validate() error {
	v := NewValidator().
		Field("replacement_digit", c.Run.ReplacementDigit, Digit).
		Field("input_dir", c.Run.InputDir, Required, ExistingDir).
		Field("output_dir", c.Run.OutputDir, Required)
	if v.HasErrors() {
		return v.Error()
	}
	if c.Run.LogFormat != "json" && c.Run.LogFormat != "text" {
		return ConfigFault("LOG_FORMAT must be json or text", ErrInvalidInput)
	}
	_, err := c.Kinds()
	return err
}
