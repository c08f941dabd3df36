package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var Conf *Config

type Config struct {
	AppName  string
	Env      string // DEV (local; default), TEST, QA, PROD
	Debug    bool
	TestMode bool
	WorkDir  string

	// challenge-token signing key; not a general crypto secret,
	// the admin gate it backs is an anti-bot speed bump only
	SecretKey []byte

	// bcrypt hash of the professor password (see apps/admin hashpassword)
	AdminPasswordHash string

	Server struct {
		Host string
		Port string
	}

	Database struct {
		Path string
	}

	DefaultFromName     string
	DefaultFromAddr     string
	RosterRecipient     string
	SendgridApiKey      string
	RollbarToken        string
	ArchiveDir          string
	DisplayTimezone     string
	SessionDuration     time.Duration
	IdentityWaitTimeout time.Duration

	// soft policy: also refuse a check-in whose identity token is already
	// on the roster (one device, two names). Advisory signal, spoofable.
	RejectDuplicateIdentity bool
}

func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.DefaultFromName, Address: c.DefaultFromAddr}
}

// Location resolves the configured display timezone; timestamps are stored
// in UTC and only rendered in this location.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func init() {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Rollcall")
	v.SetDefault("secretKey", "h^$cegm2emy-poq5(wer)enb$+57=dz&uoxh2(h!x)#*c2#yg4")
	v.SetDefault("adminPasswordHash", "")
	v.SetDefault("serverHost", "")
	v.SetDefault("serverPort", "8000")
	v.SetDefault("databasePath", "rollcall.db")
	v.SetDefault("defaultFromName", "Rollcall")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rosterRecipient", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("archiveDir", ".")
	v.SetDefault("displayTimezone", "America/Sao_Paulo")
	v.SetDefault("sessionDuration", time.Hour)
	v.SetDefault("identityWaitTimeout", 3*time.Second)
	v.SetDefault("rejectDuplicateIdentity", false)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd: %v", err)
	}
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	Conf = &Config{
		AppName:             v.GetString("appName"),
		Env:                 env,
		Debug:               v.GetBool("debug"),
		TestMode:            env == "TEST",
		WorkDir:             wd,
		SecretKey:           []byte(v.GetString("secretKey")),
		AdminPasswordHash:   v.GetString("adminPasswordHash"),
		DefaultFromName:     v.GetString("defaultFromName"),
		DefaultFromAddr:     v.GetString("defaultFromEmail"),
		RosterRecipient:     v.GetString("rosterRecipient"),
		SendgridApiKey:      v.GetString("sendgridApiKey"),
		RollbarToken:        v.GetString("rollbarToken"),
		ArchiveDir:          v.GetString("archiveDir"),
		DisplayTimezone:     v.GetString("displayTimezone"),
		SessionDuration:     v.GetDuration("sessionDuration"),
		IdentityWaitTimeout: v.GetDuration("identityWaitTimeout"),

		RejectDuplicateIdentity: v.GetBool("rejectDuplicateIdentity"),
	}
	Conf.Server.Host = v.GetString("serverHost")
	Conf.Server.Port = v.GetString("serverPort")
	Conf.Database.Path = v.GetString("databasePath")
}
