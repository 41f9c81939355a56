// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "PaveWatch-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "pavewatch.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)
	viper.SetDefault("main.log.rotationday", time.Sunday.String())

	viper.SetDefault("detector.endpoint", "http://localhost:9000")
	viper.SetDefault("detector.confidencethreshold", 0.25)
	viper.SetDefault("detector.metersperpixel", 0.01)
	viper.SetDefault("detector.timeout", 30*time.Second)
	viper.SetDefault("detector.debug", false)

	viper.SetDefault("llm.provider", "gemini")
	viper.SetDefault("llm.apikey", "")
	viper.SetDefault("llm.model", "gemini-2.0-flash")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.topp", 0.9)
	viper.SetDefault("llm.maxtokens", 1024)
	viper.SetDefault("llm.timeout", 60*time.Second)

	viper.SetDefault("scoring.tablespath", "")

	viper.SetDefault("chat.maxhistory", 10)
	viper.SetDefault("chat.queryrowlimit", 100)
	viper.SetDefault("chat.querytimeout", 10*time.Second)

	viper.SetDefault("workflow.maxsteps", 25)

	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.log.enabled", true)
	viper.SetDefault("webserver.log.path", "webserver.log")
	viper.SetDefault("webserver.log.rotation", RotationDaily)
	viper.SetDefault("webserver.log.maxsize", 1048576)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "pavewatch.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "pavewatch")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "pavewatch")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("integrations.mqtt.enabled", false)
	viper.SetDefault("integrations.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("integrations.mqtt.topic", "pavewatch/assessments")
	viper.SetDefault("integrations.mqtt.username", "")
	viper.SetDefault("integrations.mqtt.password", "")
	viper.SetDefault("integrations.mqtt.retain", false)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}
