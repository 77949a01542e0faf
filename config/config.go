package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration loaded from environment variables.
// Provide sane defaults for local development.
type Config struct {
	AppName string
	Env     string // development, staging, production
	Port    string
	GinMode string

	// Store adapter selection and connection options. Fields a backend does
	// not recognize are ignored by that backend.
	StoreAdapter    string
	StoreHost       string
	StorePort       int
	StoreUser       string
	StorePass       string
	StoreEngine     string
	StoreDBName     string
	StorePath       string
	StoreDebug      bool
	StoreExitOnFail bool

	// Redis (sessions, rate limiting)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JWTSecret  string
	TokenTTL   time.Duration
	SessionTTL time.Duration

	// Cookies
	CookieDomain string
	CookieSecure bool

	// CORS
	CORSAllowedOrigins string // comma-separated

	// Mailgun
	MailgunDomain string
	MailgunAPIKey string
	MailgunSender string

	// RabbitMQ
	RabbitMQURL        string
	RabbitMQEmailQueue string

	// Elasticsearch (user search mirror)
	ElasticsearchAddrs string // comma-separated
	ElasticsearchUser  string
	ElasticsearchPass  string
	ESUsersIndex       string

	// Email sending toggle
	MailSendEnabled bool

	// HTTP access log toggle (Gin logger)
	HTTPLogEnabled bool

	// Route-name → path overrides
	Routes RouteTable
}

// RouteTable maps the fixed route names onto their paths. getUser and
// deleteUser get a path parameter appended at registration.
type RouteTable struct {
	List       string
	Search     string
	GetUser    string
	Signup     string
	Login      string
	Logout     string
	UpdateUser string
	DeleteUser string
}

// Names returns the set of valid route names hooks can target.
func (RouteTable) Names() []string {
	return []string{"list", "search", "getUser", "signup", "login", "logout", "updateUser", "deleteUser"}
}

// Path returns the configured path for a route name, "" when unknown.
func (t RouteTable) Path(name string) string {
	switch name {
	case "list":
		return t.List
	case "search":
		return t.Search
	case "getUser":
		return t.GetUser
	case "signup":
		return t.Signup
	case "login":
		return t.Login
	case "logout":
		return t.Logout
	case "updateUser":
		return t.UpdateUser
	case "deleteUser":
		return t.DeleteUser
	}
	return ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("invalid boolean for %s: %v, using default %v", key, err, def)
			return def
		}
		return b
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid int for %s: %v, using default %d", key, err, def)
			return def
		}
		return i
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using default %v", key, err, def)
			return def
		}
		return d
	}
	return def
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		AppName: getenv("APP_NAME", "usergate"),
		Env:     getenv("APP_ENV", "development"),
		Port:    getenv("PORT", "8080"),
		GinMode: getenv("GIN_MODE", "release"),

		StoreAdapter:    getenv("STORE_ADAPTER", ""),
		StoreHost:       getenv("STORE_HOST", "localhost"),
		StorePort:       getint("STORE_PORT", 0),
		StoreUser:       getenv("STORE_USER", ""),
		StorePass:       getenv("STORE_PASS", ""),
		StoreEngine:     getenv("STORE_ENGINE", "postgres"),
		StoreDBName:     getenv("STORE_DBNAME", "usergate"),
		StorePath:       getenv("STORE_PATH", ""),
		StoreDebug:      getbool("STORE_DEBUG", false),
		StoreExitOnFail: getbool("STORE_EXIT_ON_FAIL", true),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getint("REDIS_DB", 0),

		JWTSecret:  getenv("JWT_SECRET", "devsecret"),
		TokenTTL:   getdur("JWT_TOKEN_TTL", time.Hour),
		SessionTTL: getdur("SESSION_TTL", 24*time.Hour),

		CookieDomain: getenv("COOKIE_DOMAIN", "localhost"),
		CookieSecure: getbool("COOKIE_SECURE", false),

		CORSAllowedOrigins: getenv("CORS_ALLOWED_ORIGINS", ""),

		MailgunDomain: getenv("MAILGUN_DOMAIN", ""),
		MailgunAPIKey: getenv("MAILGUN_API_KEY", ""),
		MailgunSender: getenv("MAILGUN_SENDER", ""),

		RabbitMQURL:        getenv("RABBITMQ_URL", ""),
		RabbitMQEmailQueue: getenv("RABBITMQ_EMAIL_QUEUE", "emails"),

		ElasticsearchAddrs: getenv("ELASTICSEARCH_ADDRS", ""),
		ElasticsearchUser:  getenv("ELASTICSEARCH_USERNAME", ""),
		ElasticsearchPass:  getenv("ELASTICSEARCH_PASSWORD", ""),
		ESUsersIndex:       getenv("ES_USERS_INDEX", "users"),

		MailSendEnabled: getbool("MAIL_SEND_ENABLED", false),
		HTTPLogEnabled:  getbool("HTTP_LOG_ENABLED", false),

		Routes: RouteTable{
			List:       getenv("ROUTE_LIST", "/users"),
			Search:     getenv("ROUTE_SEARCH", "/users/search"),
			GetUser:    getenv("ROUTE_GET_USER", "/user"),
			Signup:     getenv("ROUTE_SIGNUP", "/signup"),
			Login:      getenv("ROUTE_LOGIN", "/login"),
			Logout:     getenv("ROUTE_LOGOUT", "/logout"),
			UpdateUser: getenv("ROUTE_UPDATE_USER", "/user"),
			DeleteUser: getenv("ROUTE_DELETE_USER", "/user"),
		},
	}
}

// CORSOrigins returns the allowed origins as slice.
func (c *Config) CORSOrigins() []string {
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}

// ESAddrs returns Elasticsearch addresses as a slice.
func (c *Config) ESAddrs() []string {
	parts := strings.Split(c.ElasticsearchAddrs, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}
