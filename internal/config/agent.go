package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/detector"
	"github.com/spf13/viper"
)

const agentConfigName = "remotewatch-agent"

// AgentConfig is resolved from defaults, then the YAML file, then the environment.
type AgentConfig struct {
	ServerURL    string        `mapstructure:"server_url"`
	ScanInterval time.Duration `mapstructure:"scan_interval"`
	UserID       string        `mapstructure:"user_id"`

	EnableReporting bool          `mapstructure:"enable_reporting"`
	ReportTimeout   time.Duration `mapstructure:"report_timeout"`

	EnableLocalAPI bool `mapstructure:"enable_local_api"`
	LocalAPIPort   int  `mapstructure:"local_api_port"`

	EnableAlerts    bool   `mapstructure:"enable_alerts"`
	AlertWebhookURL string `mapstructure:"alert_webhook_url"`

	CatalogPath      string        `mapstructure:"catalog_path"`
	PortCheckTimeout time.Duration `mapstructure:"port_check_timeout"`

	PolicyCriticalPorts         string `mapstructure:"policy_critical_ports"`
	PolicyPortHighCount         int    `mapstructure:"policy_port_high_count"`
	PolicyRegistryCriticalCount int    `mapstructure:"policy_registry_critical_count"`
	PolicyRegistryHighCount     int    `mapstructure:"policy_registry_high_count"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	EnvFile    string `mapstructure:"-"`
	ConfigFile string `mapstructure:"-"`
}

func setAgentDefaults(v *viper.Viper) {
	def := detector.DefaultPolicy()

	v.SetDefault("server_url", "http://localhost:8082")
	v.SetDefault("scan_interval", "10s")
	v.SetDefault("user_id", "")
	v.SetDefault("enable_reporting", true)
	v.SetDefault("report_timeout", "5s")
	v.SetDefault("enable_local_api", false)
	v.SetDefault("local_api_port", 3000)
	v.SetDefault("enable_alerts", true)
	v.SetDefault("alert_webhook_url", "")
	v.SetDefault("catalog_path", "")
	v.SetDefault("port_check_timeout", "300ms")
	v.SetDefault("policy_critical_ports", joinPorts(def.CriticalPorts))
	v.SetDefault("policy_port_high_count", def.PortHighCount)
	v.SetDefault("policy_registry_critical_count", def.RegistryCriticalCount)
	v.SetDefault("policy_registry_high_count", def.RegistryHighCount)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// LoadAgent reads the agent configuration. cfgFile overrides the search for
// remotewatch-agent.yaml in the working directory and the platform config dir.
func LoadAgent(cfgFile string) (*AgentConfig, error) {
	envFile := loadDotEnv()

	v := viper.New()
	setAgentDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(agentConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(agentConfigDir())
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read agent config: %w", err)
		}
	}

	cfg := &AgentConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode agent config: %w", err)
	}
	cfg.EnvFile = envFile
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OverrideServerURL replaces the collector address and validates the result.
// On error the previous address is kept.
func (c *AgentConfig) OverrideServerURL(serverURL string) error {
	previous := c.ServerURL
	c.ServerURL = serverURL
	if err := c.Validate(); err != nil {
		c.ServerURL = previous
		return err
	}
	return nil
}

func (c *AgentConfig) Validate() error {
	if c.EnableReporting {
		u, err := url.Parse(c.ServerURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("SERVER_URL %q is not a valid URL", c.ServerURL)
		}
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("SCAN_INTERVAL must be positive")
	}
	if c.ReportTimeout <= 0 {
		return fmt.Errorf("REPORT_TIMEOUT must be positive")
	}
	if c.PortCheckTimeout <= 0 {
		return fmt.Errorf("PORT_CHECK_TIMEOUT must be positive")
	}
	if c.EnableLocalAPI {
		if err := validatePort(c.LocalAPIPort); err != nil {
			return fmt.Errorf("LOCAL_API_PORT: %w", err)
		}
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

// Policy builds the detector severity policy from the POLICY_* settings.
func (c *AgentConfig) Policy() (detector.SeverityPolicy, error) {
	ports, err := parsePorts(c.PolicyCriticalPorts)
	if err != nil {
		return detector.SeverityPolicy{}, fmt.Errorf("POLICY_CRITICAL_PORTS: %w", err)
	}

	policy := detector.SeverityPolicy{
		CriticalPorts:         ports,
		PortHighCount:         c.PolicyPortHighCount,
		RegistryCriticalCount: c.PolicyRegistryCriticalCount,
		RegistryHighCount:     c.PolicyRegistryHighCount,
	}
	if err := policy.Validate(); err != nil {
		return detector.SeverityPolicy{}, fmt.Errorf("invalid severity policy: %w", err)
	}
	return policy, nil
}

func (c *AgentConfig) LocalAPIAddr() string {
	return fmt.Sprintf(":%d", c.LocalAPIPort)
}

func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ",")
}

func agentConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "RemoteWatch")
	case "darwin":
		return "/Library/Application Support/RemoteWatch"
	default:
		return "/etc/remotewatch"
	}
}
