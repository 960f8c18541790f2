package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"kpidashboard/models"
)

const (
	FacetModeParity = "parity"
	FacetModeStrict = "strict"

	ActionModeKeyed      = "keyed"
	ActionModePositional = "positional"
)

// Config holds runtime settings. Precedence: defaults < YAML file < environment.
type Config struct {
	Addr            string             `yaml:"addr"`
	DataDir         string             `yaml:"data_dir"`
	ProductionFile  string             `yaml:"production_file"`
	OccurrencesFile string             `yaml:"occurrences_file"`
	SQLitePath      string             `yaml:"sqlite_path"`
	FacetMode       string             `yaml:"facet_mode"`
	ActionMode      string             `yaml:"action_mode"`
	SessionTTL      time.Duration      `yaml:"session_ttl"`
	LogLevel        string             `yaml:"log_level"`
	Goals           map[string]float64 `yaml:"goals"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Addr:            ":8080",
		DataDir:         "data",
		ProductionFile:  "production_data.csv",
		OccurrencesFile: "occurences_data.csv",
		FacetMode:       FacetModeParity,
		ActionMode:      ActionModeKeyed,
		SessionTTL:      12 * time.Hour,
		LogLevel:        "info",
	}
}

// Load reads the optional YAML file at path, then applies environment
// overrides through getenv. A missing file is not an error.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	if getenv == nil {
		getenv = os.Getenv
	}
	if p := getenv("KPIDASH_CONFIG"); p != "" {
		path = p
	}

	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	setString(&cfg.Addr, getenv("APP_ADDR"))
	setString(&cfg.DataDir, getenv("DATA_DIR"))
	setString(&cfg.ProductionFile, getenv("PRODUCTION_FILE"))
	setString(&cfg.OccurrencesFile, getenv("OCCURRENCES_FILE"))
	setString(&cfg.SQLitePath, getenv("SQLITE_PATH"))
	setString(&cfg.FacetMode, getenv("FACET_MODE"))
	setString(&cfg.ActionMode, getenv("ACTION_MODE"))
	setString(&cfg.LogLevel, getenv("LOG_LEVEL"))
	if v := getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("parse SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = d
	}
	cfg.FacetMode = strings.ToLower(strings.TrimSpace(cfg.FacetMode))
	cfg.ActionMode = strings.ToLower(strings.TrimSpace(cfg.ActionMode))
	for _, kpi := range models.KPIs {
		v := getenv("GOAL_" + strings.ToUpper(string(kpi)))
		if v == "" {
			continue
		}
		goal, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("parse GOAL_%s: %w", strings.ToUpper(string(kpi)), err)
		}
		if cfg.Goals == nil {
			cfg.Goals = make(map[string]float64)
		}
		cfg.Goals[string(kpi)] = goal
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.FacetMode {
	case FacetModeParity, FacetModeStrict:
	default:
		return fmt.Errorf("invalid facet_mode %q", c.FacetMode)
	}
	switch c.ActionMode {
	case ActionModeKeyed, ActionModePositional:
	default:
		return fmt.Errorf("invalid action_mode %q", c.ActionMode)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive")
	}
	for name, goal := range c.Goals {
		if _, ok := models.ParseKPI(name); !ok {
			return fmt.Errorf("unknown KPI goal %q", name)
		}
		if goal < 0 || goal > 1 {
			return fmt.Errorf("goal for %s must be within [0,1], got %v", name, goal)
		}
	}
	return nil
}

// KPIGoals merges configured goals over models.DefaultGoals.
func (c Config) KPIGoals() map[models.KPI]float64 {
	goals := make(map[models.KPI]float64, len(models.DefaultGoals))
	for k, v := range models.DefaultGoals {
		goals[k] = v
	}
	for name, v := range c.Goals {
		if kpi, ok := models.ParseKPI(name); ok {
			goals[kpi] = v
		}
	}
	return goals
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
