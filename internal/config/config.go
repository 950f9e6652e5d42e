// Package config loads the admin server configuration: defaults, then an
// optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ovpnadmin/internal/openvpn"
	"ovpnadmin/internal/script"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Port            int           `yaml:"port"`
	Env             string        `yaml:"env"`
	ScriptPath      string        `yaml:"script_path"`
	ScriptTimeout   time.Duration `yaml:"script_timeout"`
	ClientConfigDir string        `yaml:"client_config_dir"`
	PKIDir          string        `yaml:"pki_dir"`
	ServerConf      string        `yaml:"server_conf"`
	ServiceName     string        `yaml:"service_name"`
	ManagementSock  string        `yaml:"management_socket"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	JWTSecret       string        `yaml:"jwt_secret"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	AdminUsername   string        `yaml:"admin_username"`
	AdminPassword   string        `yaml:"admin_password"`
	DBPath          string        `yaml:"db_path"`
	LogLevel        string        `yaml:"log_level"`
	PublicMetrics   bool          `yaml:"public_metrics"`
}

func Default() *Config {
	return &Config{
		Port:            3000,
		Env:             EnvDevelopment,
		ScriptPath:      script.DefaultPath,
		ClientConfigDir: openvpn.DefaultClientConfigDir,
		PKIDir:          openvpn.DefaultPKIDir,
		ServerConf:      openvpn.DefaultServerConf,
		ServiceName:     openvpn.DefaultServiceName,
		ManagementSock:  openvpn.DefaultManagementSocket,
		CORSOrigins:     []string{"*"},
		TokenTTL:        24 * time.Hour,
		AdminUsername:   "admin",
		DBPath:          "./data/ovpnadmin.db",
		LogLevel:        "info",
	}
}

// Load builds the configuration. path may be empty; a named file that does not
// exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.Env = normalizeEnv(cfg.Env)
	return cfg, nil
}

func (c *Config) Production() bool { return c.Env == EnvProduction }

func (c *Config) Addr() string { return fmt.Sprintf("0.0.0.0:%d", c.Port) }

// Validate rejects configurations that would run with guessable credentials
// in production.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.ScriptPath == "" {
		errs = append(errs, errors.New("script_path is required"))
	}
	if c.Production() {
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("jwt_secret is required in production"))
		}
		if c.AdminPassword == "" {
			errs = append(errs, errors.New("admin_password is required in production"))
		}
	}
	return errors.Join(errs...)
}

type lookupFunc func(string) (string, bool)

func applyEnv(c *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PORT: %w", err))
		} else {
			c.Port = p
		}
	}
	str("NODE_ENV", &c.Env)
	str("APP_ENV", &c.Env)
	str("OPENVPN_SCRIPT_PATH", &c.ScriptPath)
	dur("SCRIPT_TIMEOUT", &c.ScriptTimeout)
	str("CLIENT_CONFIG_DIR", &c.ClientConfigDir)
	str("PKI_DIR", &c.PKIDir)
	str("OPENVPN_SERVER_CONF", &c.ServerConf)
	str("OPENVPN_SERVICE", &c.ServiceName)
	str("OPENVPN_MANAGEMENT_SOCKET", &c.ManagementSock)
	if v, ok := lookup("CORS_ORIGIN"); ok && v != "" {
		c.CORSOrigins = splitList(v)
	}
	str("JWT_SECRET", &c.JWTSecret)
	dur("TOKEN_TTL", &c.TokenTTL)
	str("ADMIN_USERNAME", &c.AdminUsername)
	if v, ok := lookup("ADMIN_PASSWORD"); ok && v != "" {
		c.AdminPassword = v
	}
	str("DB_PATH", &c.DBPath)
	str("LOG_LEVEL", &c.LogLevel)
	if v, ok := lookup("PUBLIC_METRICS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PUBLIC_METRICS: %w", err))
		} else {
			c.PublicMetrics = b
		}
	}
	return errors.Join(errs...)
}

func normalizeEnv(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
