package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env            string
	MongoURI       string
	MongoDB        string
	ServerAddr     string
	FrontendOrigin string

	RateLimitBookings  int
	RateLimitMessages  int
	RateLimitOTP       int
	RateLimitWindowSec int

	RedisURL        string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheTTLSeconds int

	StaffAPIKey       string
	StaffSetupKey     string
	JWTSecret         string
	AccessTTLMinutes  int
	RefreshTTLMinutes int
	CookieSecure      bool

	MailAPIKey      string
	MailSenderEmail string
	MailSenderName  string
	MailSandbox     bool
	OTPTTLMinutes   int

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	Timezone *time.Location
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func Load() (*Config, error) {
	loadDotEnv(".env")
	loc, err := time.LoadLocation(getEnv("TZ", "Asia/Manila"))
	if err != nil {
		return nil, err
	}

	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017/vetcare")
	mongoDB := getEnv("MONGO_DB", "")
	if mongoDB == "" {
		mongoDB = mongoDBFromURI(mongoURI)
	}
	if mongoDB == "" {
		mongoDB = "vetcare"
	}

	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		MongoURI:       mongoURI,
		MongoDB:        mongoDB,
		ServerAddr:     getEnv("SERVER_ADDR", ":8080"),
		FrontendOrigin: getEnv("FRONTEND_ORIGIN", "http://localhost:19006"),

		RateLimitBookings:  getEnvInt("RATE_LIMIT_BOOKINGS", 10),
		RateLimitMessages:  getEnvInt("RATE_LIMIT_MESSAGES", 30),
		RateLimitOTP:       getEnvInt("RATE_LIMIT_OTP", 3),
		RateLimitWindowSec: getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),

		RedisURL:        getEnv("REDIS_URL", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		CacheTTLSeconds: getEnvInt("CACHE_TTL_SECONDS", 60),

		StaffAPIKey:       getEnv("STAFF_API_KEY", ""),
		StaffSetupKey:     getEnv("STAFF_SETUP_KEY", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		AccessTTLMinutes:  getEnvInt("ACCESS_TTL_MINUTES", 15),
		RefreshTTLMinutes: getEnvInt("REFRESH_TTL_MINUTES", 43200),
		CookieSecure:      getEnv("COOKIE_SECURE", "false") == "true",

		MailAPIKey:      getEnv("MAIL_API_KEY", ""),
		MailSenderEmail: getEnv("MAIL_SENDER_EMAIL", ""),
		MailSenderName:  getEnv("MAIL_SENDER_NAME", "VetCare Clinic"),
		MailSandbox:     getEnv("MAIL_SANDBOX", "false") == "true",
		OTPTTLMinutes:   getEnvInt("OTP_TTL_MINUTES", 10),

		CloudinaryCloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		CloudinaryFolder:    getEnv("CLOUDINARY_FOLDER", "vetcare"),

		Timezone: loc,
	}

	return cfg, nil
}

func mongoDBFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return ""
	}
	// mongodb URIs sometimes include extra path segments; we only support the first one as db name.
	if idx := strings.Index(db, "/"); idx >= 0 {
		db = db[:idx]
	}
	return db
}

func loadDotEnv(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
}
