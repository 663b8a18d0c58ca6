package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Spreadsheet
	SpreadsheetID         string
	GoogleCredentialsFile string
	PatientsTable         string
	AppointmentsTable     string
	UseMemoryStore        bool

	// Snapshot cache
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Agenda layout
	BedCount         int
	DefaultStartHour int
	DefaultEndHour   int

	// Patient documents
	FileStore         string
	DriveRootFolderID string
	S3Bucket          string
	MaxUploadBytes    int64

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// HTTP surface
	StaffJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SpreadsheetID:         getEnv("SPREADSHEET_ID", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		PatientsTable:         getEnv("PATIENTS_TABLE", "Pacientes"),
		AppointmentsTable:     getEnv("APPOINTMENTS_TABLE", "Turnos"),
		UseMemoryStore:        getEnvAsBool("USE_MEMORY_STORE", false),

		CacheTTL:      getEnvAsDuration("CACHE_TTL", 10*time.Minute),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		BedCount:         getEnvAsInt("BED_COUNT", 4),
		DefaultStartHour: getEnvAsInt("DEFAULT_START_HOUR", 13),
		DefaultEndHour:   getEnvAsInt("DEFAULT_END_HOUR", 20),

		FileStore:         strings.ToLower(strings.TrimSpace(getEnv("FILE_STORE", "drive"))),
		DriveRootFolderID: getEnv("DRIVE_ROOT_FOLDER_ID", ""),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		MaxUploadBytes:    int64(getEnvAsInt("MAX_UPLOAD_BYTES", 20<<20)),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		StaffJWTSecret:     getEnv("STAFF_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// IsProduction reports whether the service runs against real clinic data.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blank entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
