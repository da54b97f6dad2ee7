package config

// Config represents the full application configuration.
type Config struct {
	GitLab  GitLabConfig  `yaml:"gitlab"`
	HTTP    HTTPConfig    `yaml:"http"`
	Report  ReportConfig  `yaml:"report"`
	Gate    GateConfig    `yaml:"gate"`
	Git     GitConfig     `yaml:"git"`
	Render  RenderConfig  `yaml:"render"`
	Logging LoggingConfig `yaml:"logging"`
}

// GitLabConfig holds the GitLab API connection settings.
type GitLabConfig struct {
	BaseURL      string `yaml:"baseURL"`
	Stage        string `yaml:"stage"`
	PollInterval string `yaml:"pollInterval"`
}

// HTTPConfig holds global HTTP client settings.
type HTTPConfig struct {
	Timeout           string  `yaml:"timeout"`
	MaxRetries        int     `yaml:"maxRetries"`
	InitialBackoff    string  `yaml:"initialBackoff"`
	MaxBackoff        string  `yaml:"maxBackoff"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier"`
}

// ReportConfig describes how coverage reports are interpreted.
type ReportConfig struct {
	Dialect         string   `yaml:"dialect"`
	IgnoredPrefixes []string `yaml:"ignoredPrefixes"`
	PackageRoots    []string `yaml:"packageRoots"`
}

// GateConfig holds the pass/fail thresholds for the coverage gate.
type GateConfig struct {
	LeniencyFloor    float64 `yaml:"leniencyFloor"`
	UncoveredLimit   int     `yaml:"uncoveredLimit"`
	MaxAggregateDrop float64 `yaml:"maxAggregateDrop"`
}

type GitConfig struct {
	RepositoryDir string `yaml:"repositoryDir"`
}

// RenderConfig controls the annotated uncovered-line report.
type RenderConfig struct {
	ContextPadding int   `yaml:"contextPadding"`
	Emoji          *bool `yaml:"emoji,omitempty"`
}

// LoggingConfig configures request/response logging.
type LoggingConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Level        string `yaml:"level"`  // debug, info, error
	Format       string `yaml:"format"` // json, human
	RedactTokens bool   `yaml:"redactTokens"`
}

// Merge combines configurations in order, with later entries taking precedence.
func Merge(configs ...Config) Config {
	result := Config{}
	for _, cfg := range configs {
		result = merge(result, cfg)
	}
	return result
}

func merge(base, overlay Config) Config {
	result := base
	result.GitLab = chooseGitLab(base.GitLab, overlay.GitLab)
	result.HTTP = chooseHTTP(base.HTTP, overlay.HTTP)
	result.Report = chooseReport(base.Report, overlay.Report)
	result.Gate = chooseGate(base.Gate, overlay.Gate)
	result.Git = chooseGit(base.Git, overlay.Git)
	result.Render = chooseRender(base.Render, overlay.Render)
	result.Logging = chooseLogging(base.Logging, overlay.Logging)
	return result
}

func chooseGitLab(base, overlay GitLabConfig) GitLabConfig {
	result := base
	if overlay.BaseURL != "" {
		result.BaseURL = overlay.BaseURL
	}
	if overlay.Stage != "" {
		result.Stage = overlay.Stage
	}
	if overlay.PollInterval != "" {
		result.PollInterval = overlay.PollInterval
	}
	return result
}

func chooseHTTP(base, overlay HTTPConfig) HTTPConfig {
	if overlay.Timeout != "" || overlay.MaxRetries != 0 || overlay.InitialBackoff != "" || overlay.MaxBackoff != "" || overlay.BackoffMultiplier != 0 {
		return overlay
	}
	return base
}

func chooseReport(base, overlay ReportConfig) ReportConfig {
	result := base
	if overlay.Dialect != "" {
		result.Dialect = overlay.Dialect
	}
	if len(overlay.IgnoredPrefixes) > 0 {
		result.IgnoredPrefixes = overlay.IgnoredPrefixes
	}
	if len(overlay.PackageRoots) > 0 {
		result.PackageRoots = overlay.PackageRoots
	}
	return result
}

func chooseGate(base, overlay GateConfig) GateConfig {
	if overlay.LeniencyFloor != 0 || overlay.UncoveredLimit != 0 || overlay.MaxAggregateDrop != 0 {
		return overlay
	}
	return base
}

func chooseGit(base, overlay GitConfig) GitConfig {
	if overlay.RepositoryDir != "" {
		return overlay
	}
	return base
}

func chooseRender(base, overlay RenderConfig) RenderConfig {
	result := base
	if overlay.ContextPadding != 0 {
		result.ContextPadding = overlay.ContextPadding
	}
	if overlay.Emoji != nil {
		result.Emoji = overlay.Emoji
	}
	return result
}

func chooseLogging(base, overlay LoggingConfig) LoggingConfig {
	if overlay.Enabled || overlay.Level != "" || overlay.Format != "" {
		return overlay
	}
	return base
}
