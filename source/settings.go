package source

import (
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/sosodev/duration"
)

const (
	defaultTopic     = "mms/notifications"
	defaultKeepAlive = 60 * time.Second

	// KeepAlive is a uint16 number of seconds on the wire.
	maxKeepAlive = 65535
)

// Settings describes how to reach the broker that carries the sensor
// notifications. The zero value of most fields means the default applies;
// only Hostname is required.
type Settings struct {
	Hostname string
	TCPPort  int
	UseTLS   bool

	ClientID     string
	Username     string
	Password     []byte
	PasswordFile string

	CertFile        string
	KeyFile         string
	KeyFilePassword string
	CAFile          string

	// Topic is the subscription filter carrying notification payloads.
	Topic string

	KeepAlive         time.Duration
	ConnectionTimeout time.Duration

	// TLSConfig overrides the config built from the file settings above.
	TLSConfig *tls.Config
}

// SettingsFromEnv builds Settings from MMS_MQTT_* environment variables, for
// example:
//
//	MMS_MQTT_HOST_NAME=localhost
//	MMS_MQTT_TCP_PORT=8883
//	MMS_MQTT_USE_TLS=true
func SettingsFromEnv() (*Settings, error) {
	return settingsFromMap(parseToSettingsMap(os.Environ()))
}

func parseToSettingsMap(envVars []string) map[string]string {
	settingsMap := make(map[string]string)
	for _, envVar := range envVars {
		kv := strings.SplitN(envVar, "=", 2)
		if len(kv) == 2 && strings.HasPrefix(kv[0], "MMS_MQTT_") {
			k := strings.ToLower(
				strings.ReplaceAll(
					strings.TrimPrefix(kv[0], "MMS_MQTT_"),
					"_",
					"",
				),
			)
			settingsMap[k] = strings.TrimSpace(kv[1])
		}
	}
	return settingsMap
}

func settingsFromMap(settingsMap map[string]string) (*Settings, error) {
	s := &Settings{}

	if settingsMap["hostname"] == "" {
		return nil, &InvalidArgumentError{
			message: "MMS_MQTT_HOST_NAME must not be empty",
		}
	}
	s.Hostname = settingsMap["hostname"]

	if value, exists := settingsMap["tcpport"]; exists {
		port, err := strconv.Atoi(value)
		if err != nil {
			return nil, &InvalidArgumentError{
				message: "invalid MMS_MQTT_TCP_PORT",
				wrapped: err,
			}
		}
		s.TCPPort = port
	}

	s.UseTLS = settingsMap["usetls"] == "true"

	if password, exists := settingsMap["password"]; exists {
		s.Password = []byte(password)
	}

	assignIfExists(settingsMap, "clientid", &s.ClientID)
	assignIfExists(settingsMap, "username", &s.Username)
	assignIfExists(settingsMap, "passwordfile", &s.PasswordFile)
	assignIfExists(settingsMap, "certfile", &s.CertFile)
	assignIfExists(settingsMap, "keyfile", &s.KeyFile)
	assignIfExists(settingsMap, "keyfilepassword", &s.KeyFilePassword)
	assignIfExists(settingsMap, "cafile", &s.CAFile)
	assignIfExists(settingsMap, "topic", &s.Topic)

	if value, exists := settingsMap["keepalive"]; exists {
		keepAlive, err := duration.Parse(value)
		if err != nil {
			return nil, &InvalidArgumentError{
				message: "invalid MMS_MQTT_KEEP_ALIVE",
				wrapped: err,
			}
		}
		s.KeepAlive = keepAlive.ToTimeDuration()
	}

	if value, exists := settingsMap["connectiontimeout"]; exists {
		timeout, err := duration.Parse(value)
		if err != nil {
			return nil, &InvalidArgumentError{
				message: "invalid MMS_MQTT_CONNECTION_TIMEOUT",
				wrapped: err,
			}
		}
		s.ConnectionTimeout = timeout.ToTimeDuration()
	}

	return s, nil
}

// assignIfExists assigns non-empty string values from settingsMap to the
// corresponding Settings fields.
func assignIfExists(
	settingsMap map[string]string,
	key string,
	field *string,
) {
	if value, exists := settingsMap[key]; exists && value != "" {
		*field = value
	}
}

// Validate fills defaults and loads key material so a misconfiguration
// surfaces at construction rather than on the first connection attempt. New
// calls it; clients that dial the broker themselves call it directly.
func (s *Settings) Validate() error {
	if s.Hostname == "" {
		return &InvalidArgumentError{message: "hostname must not be empty"}
	}

	if s.TCPPort == 0 {
		if s.UseTLS {
			s.TCPPort = 8883
		} else {
			s.TCPPort = 1883
		}
	}

	if s.ClientID == "" {
		s.ClientID = randomClientID()
	}
	if s.Topic == "" {
		s.Topic = defaultTopic
	}

	if s.KeepAlive == 0 {
		s.KeepAlive = defaultKeepAlive
	}
	if s.KeepAlive.Seconds() > maxKeepAlive {
		return &InvalidArgumentError{
			message: "keep alive cannot be more than 65535 seconds",
		}
	}

	if len(s.Password) == 0 && s.PasswordFile != "" {
		data, err := os.ReadFile(s.PasswordFile)
		if err != nil {
			return &InvalidArgumentError{
				message: "cannot read password from PasswordFile",
				wrapped: err,
			}
		}
		s.Password = []byte(strings.TrimSpace(string(data)))
	}

	return s.validateTLS()
}

// validateTLS validates and sets TLS-related config.
func (s *Settings) validateTLS() error {
	if !s.UseTLS {
		if s.CertFile != "" || s.KeyFile != "" || s.CAFile != "" ||
			s.TLSConfig != nil {
			return &InvalidArgumentError{
				message: "TLS should not be set when UseTLS is disabled",
			}
		}
		return nil
	}

	if s.TLSConfig == nil {
		s.TLSConfig = &tls.Config{
			// The broker is commonly reached as localhost or through a
			// tunnel, not by its certificate name.
			InsecureSkipVerify: true, // #nosec G402
			MinVersion:         tls.VersionTLS12,
			MaxVersion:         tls.VersionTLS13,
		}
	}

	// certFile and keyFile must be provided together.
	if s.CertFile != "" || s.KeyFile != "" {
		var cert tls.Certificate
		var err error

		if s.KeyFilePassword != "" {
			cert, err = loadX509KeyPairWithPassword(
				s.CertFile,
				s.KeyFile,
				s.KeyFilePassword,
			)
		} else {
			cert, err = tls.LoadX509KeyPair(s.CertFile, s.KeyFile)
		}

		if err != nil {
			return &InvalidArgumentError{
				message: "X509 key pair cannot be loaded",
				wrapped: err,
			}
		}
		s.TLSConfig.Certificates = []tls.Certificate{cert}
	}

	if s.CAFile != "" {
		caCertPool, err := loadCACertPool(s.CAFile)
		if err != nil {
			return &InvalidArgumentError{
				message: "cannot load a CA certificate pool from CAFile",
				wrapped: err,
			}
		}
		s.TLSConfig.RootCAs = caCertPool
	}

	return nil
}

// Provider returns the ConnectionProvider matching these settings.
func (s *Settings) Provider() ConnectionProvider {
	if s.UseTLS {
		return TLSConnection(s.Hostname, s.TCPPort, s.TLSConfig)
	}
	return TCPConnection(s.Hostname, s.TCPPort)
}

// ConnectPacket builds the MQTT CONNECT packet for these settings. Sessions
// are never resumed; after a reconnect, live state is rebuilt from fresh
// notifications instead.
func (s *Settings) ConnectPacket() *paho.Connect {
	return &paho.Connect{
		ClientID:     s.ClientID,
		CleanStart:   true,
		KeepAlive:    uint16(s.KeepAlive.Seconds()),
		Username:     s.Username,
		UsernameFlag: s.Username != "",
		Password:     s.Password,
		PasswordFlag: len(s.Password) != 0,
	}
}
