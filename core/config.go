package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

var ErrMissingSecretKey = errors.New("secretKey is required outside of DEV and TEST environments")

type (
	Config struct {
		Env      string
		Build    string
		AppName  string
		Debug    bool
		TestMode bool
		WorkDir  string

		// SecretKey signs session tokens. Generated per process in DEV|TEST when unset.
		SecretKey          string
		BcryptCost         int
		JWTExpirationDelta time.Duration

		DefaultFromEmail mail.Address
		FrontendBaseURL  string
		RollbarToken     string
		SendgridApiKey   string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
	}

	ServerConfig struct {
		Host            string
		Port            int
		DisableReqLogs  bool
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	StorageConfig struct {
		Backend        string // local | s3
		LocalDir       string
		MaxImageSize   int64
		S3Bucket       string
		S3Region       string
		S3Endpoint     string
		S3AccessKey    string
		S3SecretKey    string
		S3UsePathStyle bool
	}
)

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Masomo")
	v.SetDefault("secretKey", "")
	v.SetDefault("bcryptCost", bcrypt.DefaultCost)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("defaultFromEmail", "Masomo <noreply@localhost>")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "masomo")
	v.SetDefault("database.user", "masomo")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", false)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.localDir", "uploads")
	v.SetDefault("storage.maxImageSize", 5<<20)
	v.SetDefault("storage.s3Bucket", "")
	v.SetDefault("storage.s3Region", "us-east-1")
	v.SetDefault("storage.s3Endpoint", "")
	v.SetDefault("storage.s3AccessKey", "")
	v.SetDefault("storage.s3SecretKey", "")
	v.SetDefault("storage.s3UsePathStyle", false)
}

// NewConfig loads the configuration of the current ENV (DEV by default) from the environment
// and the optional config/.env.<env> file.
func NewConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "getting working directory")
	}
	if workDir := os.Getenv("WORKDIR"); workDir != "" {
		wd = workDir
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}
	v.AutomaticEnv()

	return buildConfig(v, env, wd)
}

func buildConfig(v *viper.Viper, env, wd string) (*Config, error) {
	conf := &Config{
		Env:                env,
		Build:              v.GetString("build"),
		AppName:            v.GetString("appName"),
		Debug:              env == "DEV", // unless set explicitly
		TestMode:           v.GetBool("testMode"),
		WorkDir:            wd,
		SecretKey:          v.GetString("secretKey"),
		BcryptCost:         v.GetInt("bcryptCost"),
		JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
		FrontendBaseURL:    v.GetString("frontendBaseURL"),
		RollbarToken:       v.GetString("rollbarToken"),
		SendgridApiKey:     v.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Storage: StorageConfig{
			Backend:        v.GetString("storage.backend"),
			LocalDir:       v.GetString("storage.localDir"),
			MaxImageSize:   v.GetInt64("storage.maxImageSize"),
			S3Bucket:       v.GetString("storage.s3Bucket"),
			S3Region:       v.GetString("storage.s3Region"),
			S3Endpoint:     v.GetString("storage.s3Endpoint"),
			S3AccessKey:    v.GetString("storage.s3AccessKey"),
			S3SecretKey:    v.GetString("storage.s3SecretKey"),
			S3UsePathStyle: v.GetBool("storage.s3UsePathStyle"),
		},
	}

	if v.IsSet("debug") {
		conf.Debug = v.GetBool("debug")
	}

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing defaultFromEmail")
	}
	conf.DefaultFromEmail = *from

	if conf.BcryptCost < bcrypt.MinCost || conf.BcryptCost > bcrypt.MaxCost {
		conf.BcryptCost = bcrypt.DefaultCost
	}
	if conf.JWTExpirationDelta <= 0 {
		conf.JWTExpirationDelta = 7 * 24 * time.Hour
	}

	if conf.SecretKey == "" {
		if !conf.IsLocal() {
			return nil, ErrMissingSecretKey
		}
		key, err := randomKey(32)
		if err != nil {
			return nil, errors.Wrap(err, "generating secretKey")
		}
		conf.SecretKey = key
	}
	return conf, nil
}

// IsLocal reports whether the app runs in a developer or test environment.
func (c *Config) IsLocal() bool {
	return c.Env == "DEV" || c.Env == "TEST"
}

func (c *Config) String() string {
	return fmt.Sprintf("%s (env=%s, build=%s)", c.AppName, c.Env, c.Build)
}

func randomKey(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
