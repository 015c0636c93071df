package internal

import (
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_FromEnviron(t *testing.T) {
	req := require.New(t)
	for key, value := range map[string]string{
		"HOST": "0.0.0.0", "PORT": "8080", "ADMIN_PORT": "9090", "LOG_LEVEL": "DEBUG",
		"BADGER_FILEPATH": "/tmp/badger", "BLUGE_FILEPATH": "/tmp/bluge", "JWT_SECRET": "s3cret",
		"CONNECTION_BUFFER_SIZE": "64", "INBOUND_BUFFER_SIZE": "16", "BUFFER_SIZE": "1024",
		"STORE_TIMEOUT": "2s", "SINK_TIMEOUT": "100ms", "WRITE_TIMEOUT": "5s",
		"RESTART_INTERVAL": "200ms", "METRIC_INTERVAL": "10s", "MAX_CONTENT_LENGTH": "4000",
		"CHARACTER_REPLACEMENT": "*",
	} {
		t.Setenv(key, value)
	}

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)
	req.NoError(err)
	req.Equal(8080, config.Port)
	req.Equal(2*time.Second, config.StoreTimeout)
	req.Nil(config.LimitMessages)
	req.Empty(config.AMQPURL)
	req.Equal("fitpulse.chat", config.AMQPExchange)
	req.Equal(10, config.LowCapacityThreshold)
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)
	r, err := CharacterRune("#")
	req.NoError(err)
	req.Equal('#', r)

	_, err = CharacterRune("**")
	req.Error(err)
}
