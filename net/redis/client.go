package redis

import (
	"github.com/mediocregopher/radix/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"gitlab.com/paramountdax-exchange/genealogy_api/config"
)

// ErrNotConnected is returned by Exec before Connect
var ErrNotConnected = errors.New("redis client is not connected")

// Client is a thin wrapper over a radix connection pool
type Client struct {
	cfg  config.RedisConfig
	pool *radix.Pool
}

// NewClient godoc
func NewClient(cfg config.RedisConfig) *Client {
	return &Client{cfg: cfg}
}

// Connect opens the connection pool
func (client *Client) Connect() error {
	size := client.cfg.PoolSize
	if size <= 0 {
		size = 10
	}
	pool, err := radix.NewPool("tcp", client.cfg.Addr, size)
	if err != nil {
		return errors.Wrap(err, "unable to connect to redis")
	}
	client.pool = pool
	log.Info().Str("section", "redis").Str("addr", client.cfg.Addr).Msg("Connected to redis")
	return nil
}

// Disconnect closes the connection pool
func (client *Client) Disconnect() error {
	if client.pool == nil {
		return nil
	}
	return client.pool.Close()
}

// Exec runs a command with flattened arguments and stores the reply in rcv
func (client *Client) Exec(rcv interface{}, cmd, key string, args ...interface{}) error {
	if client.pool == nil {
		return ErrNotConnected
	}
	return client.pool.Do(radix.FlatCmd(rcv, cmd, key, args...))
}

// Get reads a key and reports whether it existed
func (client *Client) Get(key string, rcv interface{}) (bool, error) {
	if client.pool == nil {
		return false, ErrNotConnected
	}
	mn := radix.MaybeNil{Rcv: rcv}
	if err := client.pool.Do(radix.Cmd(&mn, "GET", key)); err != nil {
		return false, err
	}
	return !mn.Nil, nil
}
