// internal/common/config/loader.go
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"student-grading/internal/common/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultInputName     = "notas.csv"
	DefaultOutputName    = "notas_procesadas.csv"
	DefaultPassThreshold = 71.0

	GradeWorkerTaskType = "grade-student-records"
)

// Load reads config.yaml plus config.<APP_ENVIRONMENT>.yaml, then applies
// environment overrides (grading.base_dir -> GRADING_BASE_DIR).
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyWorkerOverrides(v, &cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "student-grading")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")

	v.SetDefault("grading.base_dir", ".")
	v.SetDefault("grading.input_name", DefaultInputName)
	v.SetDefault("grading.input_path", "")
	v.SetDefault("grading.output_path", "")
	v.SetDefault("grading.pass_threshold", DefaultPassThreshold)
	v.SetDefault("grading.engine", "csv")
	v.SetDefault("grading.schema", "en")
	v.SetDefault("grading.crlf", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("metrics.address", ":8080")
	v.SetDefault("metrics.textfile", "")

	v.SetDefault("camunda.broker_address", "")
	v.SetDefault("camunda.plaintext", true)
	v.SetDefault("camunda.max_jobs_active", 10)
	v.SetDefault("camunda.timeout", 30000)
	v.SetDefault("camunda.request_timeout", 30000)

	v.SetDefault("workers."+GradeWorkerTaskType+".enabled", true)

	v.SetDefault("database.postgres.host", "")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "")
	v.SetDefault("database.postgres.user", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.max_connections", 25)
	v.SetDefault("database.postgres.max_idle", 5)
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.redis.address", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("database.elasticsearch.addresses", []string{})
	v.SetDefault("database.elasticsearch.url", "")
	v.SetDefault("database.elasticsearch.username", "")
	v.SetDefault("database.elasticsearch.password", "")

	v.SetDefault("export.postgres.enabled", false)
	v.SetDefault("export.postgres.ensure_schema", false)
	v.SetDefault("export.redis.enabled", false)
	v.SetDefault("export.redis.key_prefix", "grading:")
	v.SetDefault("export.redis.ttl", 86400)
	v.SetDefault("export.elasticsearch.enabled", false)
	v.SetDefault("export.elasticsearch.index", "graded-records")

	v.SetDefault("notifications.aws.region", "us-east-1")
	v.SetDefault("notifications.sns.enabled", false)
	v.SetDefault("notifications.sns.topic_arn", "")
	v.SetDefault("notifications.ses.enabled", false)
	v.SetDefault("notifications.ses.from_email", "")
	v.SetDefault("notifications.ses.to", []string{})
}

// loadEnvFile loads the first .env found walking from the working directory to the module root.
func loadEnvFile() string {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// applyWorkerOverrides re-reads each worker's keys through viper. Unmarshal
// does not see environment values below a map key, so
// WORKERS_GRADE_STUDENT_RECORDS_ENABLED would otherwise be dropped.
func applyWorkerOverrides(v *viper.Viper, cfg *Config) {
	if cfg.Workers == nil {
		cfg.Workers = make(map[string]WorkerConfig)
	}
	if _, ok := cfg.Workers[GradeWorkerTaskType]; !ok {
		cfg.Workers[GradeWorkerTaskType] = WorkerConfig{}
	}
	for name, w := range cfg.Workers {
		prefix := "workers." + name + "."
		if v.IsSet(prefix + "enabled") {
			w.Enabled = v.GetBool(prefix + "enabled")
		}
		if n := v.GetInt(prefix + "max_jobs_active"); n != 0 {
			w.MaxJobsActive = n
		}
		if n := v.GetInt(prefix + "timeout"); n != 0 {
			w.Timeout = n
		}
		if n := v.GetInt(prefix + "max_retries"); n != 0 {
			w.MaxRetries = n
		}
		cfg.Workers[name] = w
	}
}

// applyDefaults fills values that depend on other settings.
func applyDefaults(cfg *Config) {
	if cfg.Grading.BaseDir == "" {
		cfg.Grading.BaseDir = "."
	}
	if cfg.Grading.InputName == "" {
		cfg.Grading.InputName = DefaultInputName
	}
	if cfg.Grading.OutputPath == "" {
		cfg.Grading.OutputPath = filepath.Join(cfg.Grading.BaseDir, DefaultOutputName)
	}
	cfg.Grading.Engine = strings.ToLower(strings.TrimSpace(cfg.Grading.Engine))
	cfg.Grading.Schema = strings.ToLower(strings.TrimSpace(cfg.Grading.Schema))

	if cfg.Workers == nil {
		cfg.Workers = make(map[string]WorkerConfig)
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = cfg.Camunda.MaxJobsActive
		}
		if worker.Timeout == 0 {
			worker.Timeout = cfg.Camunda.Timeout
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig checks enum values and the settings each enabled sink needs.
func validateConfig(cfg *Config) error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch cfg.Grading.Engine {
	case "csv", "dataframe":
	default:
		add("grading.engine must be csv or dataframe, got %q", cfg.Grading.Engine)
	}
	switch cfg.Grading.Schema {
	case "en", "es":
	default:
		add("grading.schema must be en or es, got %q", cfg.Grading.Schema)
	}
	if t := cfg.Grading.PassThreshold; math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		add("grading.pass_threshold must be a finite number >= 0")
	}
	switch cfg.Logging.Format {
	case "json", "console":
	default:
		add("logging.format must be json or console, got %q", cfg.Logging.Format)
	}

	if cfg.Export.Postgres.Enabled {
		pg := cfg.Database.Postgres
		if pg.Host == "" || pg.Database == "" || pg.User == "" {
			add("database.postgres.host, database and user are required when export.postgres is enabled")
		}
	}
	if cfg.Export.Redis.Enabled && cfg.Database.Redis.Address == "" {
		add("database.redis.address is required when export.redis is enabled")
	}
	if cfg.Export.Redis.TTL < 0 {
		add("export.redis.ttl must be >= 0")
	}
	if cfg.Export.Elasticsearch.Enabled {
		if len(cfg.Database.Elasticsearch.GetAddresses()) == 0 {
			add("database.elasticsearch.addresses or url is required when export.elasticsearch is enabled")
		}
		if cfg.Export.Elasticsearch.Index == "" {
			add("export.elasticsearch.index is required when export.elasticsearch is enabled")
		}
	}

	n := cfg.Notifications
	if n.Enabled() && n.AWS.Region == "" {
		add("notifications.aws.region is required when notifications are enabled")
	}
	if n.SNS.Enabled && n.SNS.TopicARN == "" {
		add("notifications.sns.topic_arn is required when sns is enabled")
	}
	if n.SES.Enabled && (n.SES.FromEmail == "" || len(n.SES.To) == 0) {
		add("notifications.ses.from_email and to are required when ses is enabled")
	}

	if len(problems) > 0 {
		return errors.NewConfigInvalidError(strings.Join(problems, "; "))
	}
	return nil
}

// ValidateWorkerManager checks the settings only the job worker process needs.
func ValidateWorkerManager(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return errors.NewConfigInvalidError("camunda.broker_address is required")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
