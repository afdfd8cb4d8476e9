package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/PetoAdam/homenavi/arm-bridge/internal/component"
)

const defaultArms = "PSM1,PSM2,MTML,MTMR,ECM"

var ErrInvalidArmName = errors.New("invalid arm name")

// ValidateArmName rejects names that would turn the arm's topic into an MQTT
// wildcard or shift it to another topic level.
func ValidateArmName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidArmName)
	}
	if strings.ContainsAny(name, "/#+") {
		return fmt.Errorf("%w: %q must not contain / # or +", ErrInvalidArmName, name)
	}
	return nil
}

type Config struct {
	Port          string
	MQTTBrokerURL string
	MQTTClientID  string
	MQTTCAFile    string
	LogLevel      string
	LogFile       string
	BridgeID      string
	Version       string

	Arms          []ArmConfig
	QueueSize     int
	RecordPeriod  time.Duration
	Retention     time.Duration
	PruneSchedule string

	RedisAddr     string
	RedisPassword string
	Postgres      DBConfig

	// JWTPublicKeyPath enables token checks on /api/arms when set.
	JWTPublicKeyPath string
}

// ArmConfig is one bridged arm. ConfigFile is handed to the arm's Configure.
type ArmConfig struct {
	component.TaskArg
	ConfigFile string
}

type DBConfig struct {
	User     string
	Password string
	DBName   string
	Host     string
	Port     string
	SSLMode  string
}

func (d DBConfig) Enabled() bool { return strings.TrimSpace(d.Host) != "" }

func (c *Config) CacheEnabled() bool { return strings.TrimSpace(c.RedisAddr) != "" }

func Load() (*Config, error) {
	period, err := parseDuration("ARM_BRIDGE_PERIOD", "10ms")
	if err != nil {
		return nil, err
	}
	recordPeriod, err := parseDuration("ARM_BRIDGE_RECORD_PERIOD", "100ms")
	if err != nil {
		return nil, err
	}
	retention, err := parseDuration("ARM_BRIDGE_RETENTION", "24h")
	if err != nil {
		return nil, err
	}
	queueSize, err := strconv.Atoi(getEnv("ARM_BRIDGE_QUEUE_SIZE", "16"))
	if err != nil || queueSize <= 0 {
		return nil, fmt.Errorf("ARM_BRIDGE_QUEUE_SIZE must be a positive integer")
	}

	version, err := parseVersion(getEnv("ARM_BRIDGE_VERSION", "dev"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:          getEnv("ARM_BRIDGE_PORT", "8094"),
		MQTTBrokerURL: getEnv("MQTT_BROKER_URL", "mqtt://mosquitto:1883"),
		MQTTClientID:  getEnv("ARM_BRIDGE_MQTT_CLIENT_ID", "arm-bridge"),
		MQTTCAFile:    strings.TrimSpace(os.Getenv("ARM_BRIDGE_MQTT_CA")),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       strings.TrimSpace(os.Getenv("ARM_BRIDGE_LOG_FILE")),
		BridgeID:      getEnv("ARM_BRIDGE_ID", "arm-bridge-1"),
		Version:       version,
		QueueSize:     queueSize,
		RecordPeriod:  recordPeriod,
		Retention:     retention,
		PruneSchedule: getEnv("ARM_BRIDGE_PRUNE_CRON", "0 */15 * * * *"),
		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		Postgres: DBConfig{
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   getEnv("POSTGRES_DB", "homenavi"),
			Host:     strings.TrimSpace(os.Getenv("POSTGRES_HOST")),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		JWTPublicKeyPath: strings.TrimSpace(os.Getenv("JWT_PUBLIC_KEY_PATH")),
	}
	for _, name := range parseList(getEnv("ARM_BRIDGE_ARMS", defaultArms)) {
		if err := ValidateArmName(name); err != nil {
			return nil, fmt.Errorf("ARM_BRIDGE_ARMS: %w", err)
		}
		cfg.Arms = append(cfg.Arms, ArmConfig{TaskArg: component.TaskArg{Name: name, Period: period}})
	}

	if path := strings.TrimSpace(os.Getenv("ARM_BRIDGE_CONFIG")); path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := fc.apply(cfg, period); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if len(cfg.Arms) == 0 {
		return nil, fmt.Errorf("no arms configured")
	}

	slog.Info("arm-bridge config loaded", "port", cfg.Port, "mqtt", cfg.MQTTBrokerURL, "bridge_id", cfg.BridgeID,
		"arms", cfg.ArmNames(), "cache", cfg.CacheEnabled(), "history", cfg.Postgres.Enabled())
	return cfg, nil
}

func (c *Config) ArmNames() []string {
	out := make([]string, 0, len(c.Arms))
	for _, a := range c.Arms {
		out = append(out, a.Name)
	}
	return out
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, raw)
	}
	return d, nil
}

// parseVersion accepts "dev" or a semantic version with or without the
// leading v and returns the canonical v-prefixed form.
func parseVersion(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "dev" {
		return v, nil
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("ARM_BRIDGE_VERSION: %q is not a semantic version", raw)
	}
	return semver.Canonical(v), nil
}

func parseList(val string) []string {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(val, ",") {
		p := strings.TrimSpace(part)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
