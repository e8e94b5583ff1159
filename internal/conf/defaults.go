package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig sets default values for every configuration key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("main.name", "evmtrack")
	v.SetDefault("main.debug", false)

	v.SetDefault("database.type", DatabaseSQLite)
	v.SetDefault("database.maxopenconns", 10)
	v.SetDefault("database.maxidleconns", 5)
	v.SetDefault("database.connmaxlifetime", time.Hour)
	v.SetDefault("database.sqlite.path", "data/evmtrack.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.database", "evmtrack")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "evmtrack")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("webserver.host", "")
	v.SetDefault("webserver.port", 8080)
	v.SetDefault("webserver.debug", false)
	v.SetDefault("webserver.shutdowntimeout", 10*time.Second)

	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.jwtsecretfile", "")
	v.SetDefault("security.issuer", "evmtrack")
	v.SetDefault("security.accesstokenttl", 15*time.Minute)
	v.SetDefault("security.refreshtokenttl", 7*24*time.Hour)
	v.SetDefault("security.redis.enabled", false)
	v.SetDefault("security.redis.addr", "localhost:6379")
	v.SetDefault("security.redis.db", 0)

	v.SetDefault("custody.manufactureruserid", 0)
	v.SetDefault("custody.revertonreject", false)
	v.SetDefault("custody.reportdir", "reports")
	v.SetDefault("custody.directorycachettl", 10*time.Minute)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.clientid", "evmtrack")
	v.SetDefault("mqtt.topic", "evmtrack/custody")
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("logging.defaultlevel", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.fileoutput.enabled", false)
	v.SetDefault("logging.fileoutput.path", "logs/evmtrack.log")
	v.SetDefault("logging.fileoutput.level", "info")
}
