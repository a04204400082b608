package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseToSettingsMap(t *testing.T) {
	settingsMap := parseToSettingsMap([]string{
		"MMS_MQTT_HOST_NAME=localhost",
		"MMS_MQTT_TCP_PORT=8883",
		"MMS_MQTT_USE_TLS=true",
		"MMS_MQTT_KEY_FILE_PASSWORD=secret.txt",
		"UNRELATED=value",
		"MMS_MQTT_TOPIC= mms/notifications ",
	})

	require.Equal(t, map[string]string{
		"hostname":        "localhost",
		"tcpport":         "8883",
		"usetls":          "true",
		"keyfilepassword": "secret.txt",
		"topic":           "mms/notifications",
	}, settingsMap)
}

func TestSettingsFromMap(t *testing.T) {
	s, err := settingsFromMap(map[string]string{
		"hostname":          "broker.local",
		"tcpport":           "1884",
		"usetls":            "false",
		"clientid":          "bench01",
		"username":          "sensor",
		"password":          "telemetry",
		"topic":             "lab/notifications",
		"keepalive":         "PT30S",
		"connectiontimeout": "PT2M",
	})
	require.NoError(t, err)

	require.Equal(t, "broker.local", s.Hostname)
	require.Equal(t, 1884, s.TCPPort)
	require.False(t, s.UseTLS)
	require.Equal(t, "bench01", s.ClientID)
	require.Equal(t, "sensor", s.Username)
	require.Equal(t, []byte("telemetry"), s.Password)
	require.Equal(t, "lab/notifications", s.Topic)
	require.Equal(t, 30*time.Second, s.KeepAlive)
	require.Equal(t, 2*time.Minute, s.ConnectionTimeout)
}

func TestSettingsFromMapMissingHostname(t *testing.T) {
	_, err := settingsFromMap(map[string]string{"tcpport": "1883"})
	require.Error(t, err)

	var invalid *InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
}

func TestSettingsFromMapInvalidValues(t *testing.T) {
	_, err := settingsFromMap(map[string]string{
		"hostname": "localhost",
		"tcpport":  "not-a-port",
	})
	require.Error(t, err)

	_, err = settingsFromMap(map[string]string{
		"hostname":  "localhost",
		"keepalive": "30s",
	})
	require.Error(t, err)
}

func TestSettingsValidateDefaults(t *testing.T) {
	s := &Settings{Hostname: "localhost"}
	require.NoError(t, s.Validate())

	require.Equal(t, 1883, s.TCPPort)
	require.Equal(t, defaultTopic, s.Topic)
	require.Equal(t, defaultKeepAlive, s.KeepAlive)
	require.NotEmpty(t, s.ClientID)
	require.LessOrEqual(t, len(s.ClientID), maxClientIDLength)

	tls := &Settings{Hostname: "localhost", UseTLS: true}
	require.NoError(t, tls.Validate())
	require.Equal(t, 8883, tls.TCPPort)
	require.NotNil(t, tls.TLSConfig)
}

func TestSettingsValidateRejectsTLSFilesWithoutTLS(t *testing.T) {
	s := &Settings{Hostname: "localhost", CAFile: "ca.pem"}

	err := s.Validate()
	require.Error(t, err)

	var invalid *InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
}

func TestSettingsValidateReadsPasswordFile(t *testing.T) {
	passFile := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(passFile, []byte("telemetry\n"), 0o600))

	s := &Settings{Hostname: "localhost", PasswordFile: passFile}
	require.NoError(t, s.Validate())
	require.Equal(t, []byte("telemetry"), s.Password)
}

func TestConnectPacket(t *testing.T) {
	s := &Settings{Hostname: "localhost"}
	require.NoError(t, s.Validate())

	cp := s.ConnectPacket()
	require.True(t, cp.CleanStart)
	require.Equal(t, s.ClientID, cp.ClientID)
	require.Equal(t, uint16(60), cp.KeepAlive)
	require.False(t, cp.UsernameFlag)
	require.False(t, cp.PasswordFlag)

	s = &Settings{
		Hostname: "localhost",
		Username: "sensor",
		Password: []byte("telemetry"),
	}
	require.NoError(t, s.Validate())

	cp = s.ConnectPacket()
	require.True(t, cp.UsernameFlag)
	require.Equal(t, "sensor", cp.Username)
	require.True(t, cp.PasswordFlag)
	require.Equal(t, []byte("telemetry"), cp.Password)
}

func TestRandomClientID(t *testing.T) {
	id := randomClientID()

	require.Len(t, id, maxClientIDLength)
	require.Equal(t, "mms", id[:3])
	for i := 0; i < len(id); i++ {
		require.Contains(t, string(validClientIDCharacters), string(id[i]))
	}
}
