package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// AppConfig holds every setting read from the environment
type AppConfig struct {
	Env                string
	Port               string
	MongoURI           string
	DBName             string
	MongoTransactions  bool
	JWTSecret          string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	FirebaseCredsB64   string
	FirebaseCredsFile  string
	FirebaseProjectID  string
	GovernoratesPath   string
	SchedulerEnabled   bool
	CORSAllowedOrigins []string
}

// IsDevelopment reports whether ENV selects development mode
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

// Load reads the configuration from environment variables
func Load() *AppConfig {
	cfg := &AppConfig{
		Env:               os.Getenv("ENV"),
		Port:              getEnv("PORT", "8080"),
		MongoURI:          os.Getenv("MONGO_URI"),
		DBName:            getEnv("DB_NAME", "sa3tha"),
		MongoTransactions: getBool("MONGO_TRANSACTIONS", true),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		FirebaseCredsB64:  os.Getenv("FIREBASE_CREDENTIALS_BASE64"),
		FirebaseCredsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		FirebaseProjectID: os.Getenv("FIREBASE_PROJECT_ID"),
		GovernoratesPath:  getEnv("GOVERNORATES_GEOJSON", "data/gadm41_EGY_1.json"),
		SchedulerEnabled:  getBool("SCHEDULER_ENABLED", true),
	}

	// check both MONGO_URI and MONGODB_URI
	if cfg.MongoURI == "" {
		cfg.MongoURI = os.Getenv("MONGODB_URI")
	}
	if cfg.MongoURI == "" && cfg.IsDevelopment() {
		cfg.MongoURI = "mongodb://localhost:27017"
	}

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			cfg.RedisDB = db
		} else {
			log.Printf("Warning: invalid REDIS_DB %q, using 0", dbStr)
		}
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid %s %q, using %v", key, v, def)
		return def
	}
	return b
}
