package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hay-kot/criterio"
)

type Config struct {
	HTTPAddr string

	DBDriver    string
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string
	DatabaseURL string

	JWTSecret string
	JWTTTL    time.Duration

	GeminiKey        string
	GeminiModel      string
	GeminiBaseURL    string
	RosterFile       string
	CandidateTimeout time.Duration

	CORSOrigins []string

	LogLevel string
	LogFile  string

	SuperAdminUsername string
}

func Load() *Config {
	port, err := strconv.Atoi(os.Getenv("DB_PORT"))
	if err != nil {
		port = 5432 // fallback
	}

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DBDriver:    getEnv("DB_DRIVER", "postgres"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      port,
		DBUser:      os.Getenv("DB_USER"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      os.Getenv("DB_NAME"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    getEnvDuration("JWT_TTL", 30*24*time.Hour),

		GeminiKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		RosterFile:       os.Getenv("AI_ROSTER_FILE"),
		CandidateTimeout: getEnvDuration("AI_CANDIDATE_TIMEOUT", 30*time.Second),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),

		SuperAdminUsername: os.Getenv("SUPER_ADMIN_USERNAME"),
	}
}

// ConnString returns the DSN for the configured driver. DATABASE_URL wins when set.
func (c *Config) ConnString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.DBDriver == "sqlite3" {
		name := c.DBName
		if name == "" {
			name = "studyflow.db"
		}
		return "file:" + name + "?_foreign_keys=on"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}

// AIEnabled reports whether a completion backend is configured.
func (c *Config) AIEnabled() bool {
	return strings.TrimSpace(c.GeminiKey) != ""
}

func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	switch c.DBDriver {
	case "postgres", "sqlite3":
	default:
		errs = errs.Append("DB_DRIVER", fmt.Errorf("unsupported driver %q", c.DBDriver))
	}
	if c.DBDriver == "postgres" && c.DatabaseURL == "" && c.DBName == "" {
		errs = errs.Append("DB_NAME", fmt.Errorf("required for postgres"))
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = errs.Append("JWT_SECRET", fmt.Errorf("required"))
	}
	if c.JWTTTL <= 0 {
		errs = errs.Append("JWT_TTL", fmt.Errorf("must be positive"))
	}
	if c.CandidateTimeout < 0 {
		errs = errs.Append("AI_CANDIDATE_TIMEOUT", fmt.Errorf("must not be negative"))
	}

	return errs.ToError()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
