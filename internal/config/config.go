// Package config loads the runtime's configuration keys via viper (an
// optional config-file path, a "device" file search, and
// viper.AutomaticEnv). This
// package is consumed only by cmd/device; the core never imports viper,
// keeping "configuration loading" an external collaborator.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the typed view of the device's configuration keys.
type Config struct {
	MQTT            MQTT   `mapstructure:"mqtt"`
	Update          Update `mapstructure:"update"`
	Hostname        string `mapstructure:"hostname"`
	EmergencyBufLen int    `mapstructure:"emergency_buf_len"`
}

// MQTT is the mqtt.* key group.
type MQTT struct {
	Server            string `mapstructure:"server"`
	Port              int    `mapstructure:"port"`
	SSL               bool   `mapstructure:"ssl"`
	Username          string `mapstructure:"username"`
	Password          string `mapstructure:"password"`
	KeepAliveSeconds  int    `mapstructure:"keep_alive_interval"`
	WatchdogTimeoutMS int    `mapstructure:"wdt_timeout"`
	MaxMsgsWaiting    int    `mapstructure:"max_msgs_waiting"`
}

// Update is the update.* key group.
type Update struct {
	Channel    string `mapstructure:"channel"`
	AutoUpdate bool   `mapstructure:"auto_update"`
}

// Load reads configPath (if non-empty) or searches the working directory
// for a "device" config file, overlays environment variables (MQTT_SERVER,
// UPDATE_CHANNEL, ...), and decodes the result into a Config.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.keep_alive_interval", 60)
	v.SetDefault("mqtt.max_msgs_waiting", 10)
	v.SetDefault("emergency_buf_len", 512)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("device")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/otamqtt")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding config: %w", err)
	}
	return &cfg, nil
}
