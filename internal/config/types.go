package config

// Config is the root configuration structure for dupctl.
// Serialised to ~/.dupctl/config.json.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Jobs     JobsConfig     `mapstructure:"jobs"     json:"jobs"`
	Git      GitConfig      `mapstructure:"git"      json:"git"`
	Gateway  GatewayConfig  `mapstructure:"gateway"  json:"gateway"`
	Scanner  ScannerConfig  `mapstructure:"scanner"  json:"scanner"`
}

// DatabaseConfig controls the storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path" json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn" json:"dsn"`
}

// JobsConfig controls the job server's concurrency gate, retry policy, and
// scan cache TTL (spec.md §4.1/§4.3).
type JobsConfig struct {
	// MaxConcurrent caps simultaneously running jobs. 0 pauses all new launches.
	MaxConcurrent int `mapstructure:"max_concurrent" json:"max_concurrent"`
	// RetryMaxAttempts is the default ceiling before a retry-eligible job is
	// given up on and left failed.
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" json:"retry_max_attempts"`
	// RetryBaseDelaySeconds is a stored setting for the initial retry backoff
	// delay. The serve and ui commands do not pass it to the job server, which
	// uses its own default base delay.
	RetryBaseDelaySeconds int `mapstructure:"retry_base_delay_seconds" json:"retry_base_delay_seconds"`
	// CacheTTLSeconds is the default scan cache lifetime (spec.md §4.3 default: 30 days).
	CacheTTLSeconds int64 `mapstructure:"cache_ttl_seconds" json:"cache_ttl_seconds"`
}

// GitConfig holds credentials for each supported git hosting platform plus
// the Git Workflow Manager's behavioural switches.
type GitConfig struct {
	GitHub []GitHubConfig `mapstructure:"github" json:"github"`
	GitLab []GitLabConfig `mapstructure:"gitlab" json:"gitlab"`
	Azure  []AzureConfig  `mapstructure:"azure"  json:"azure"`
	// DryRun skips push/PR-creation side effects, logging the would-be action instead.
	DryRun bool `mapstructure:"dry_run" json:"dry_run"`
	// BaseBranch is the default target branch for generated pull requests.
	BaseBranch string `mapstructure:"base_branch" json:"base_branch"`
	// BranchPrefix namespaces generated branches, e.g. "dupctl/".
	BranchPrefix string `mapstructure:"branch_prefix" json:"branch_prefix"`
	// AttributionTrailer is appended to generated commit messages.
	AttributionTrailer string `mapstructure:"attribution_trailer" json:"attribution_trailer"`
}

// GitHubConfig holds credentials for a single GitHub instance.
type GitHubConfig struct {
	Token string `mapstructure:"token" json:"token"`
	// Host allows enterprise GitHub (e.g. github.mycompany.com).
	Host string `mapstructure:"host" json:"host"`
}

// GitLabConfig holds credentials for a single GitLab instance.
type GitLabConfig struct {
	Token string `mapstructure:"token" json:"token"`
	Host  string `mapstructure:"host"  json:"host"`
}

// AzureConfig holds credentials for an Azure DevOps organisation. Kept as a
// documented gap: no provider implementation backs this yet, see DESIGN.md.
type AzureConfig struct {
	Token string `mapstructure:"token" json:"token"`
	Org   string `mapstructure:"org"   json:"org"`
	Host  string `mapstructure:"host"  json:"host"`
}

// GatewayConfig controls the persistent gateway daemon (spec.md §12.2).
type GatewayConfig struct {
	// Port is the localhost HTTP port the gateway listens on (default: 7070).
	Port int `mapstructure:"port" json:"port"`
	// RateLimitPerSecond is the token-bucket refill rate, per client IP.
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second" json:"rate_limit_per_second"`
	// RateLimitBurst is the token-bucket burst capacity.
	RateLimitBurst int `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`
	// ActivityHistorySize bounds the in-memory activity feed ring buffer.
	ActivityHistorySize int `mapstructure:"activity_history_size" json:"activity_history_size"`
}

// ScannerConfig points at the external pattern-detector binary (spec.md §12.4).
type ScannerConfig struct {
	// BinPath is the path to the external duplicate-detection binary.
	BinPath string `mapstructure:"bin_path" json:"bin_path"`
	// TimeoutSeconds bounds a single scan invocation.
	TimeoutSeconds int `mapstructure:"timeout_seconds" json:"timeout_seconds"`
}
