package driver

import "time"

// KeyValueDB expiring key-value storage, used for the session token
// blacklist
type KeyValueDB interface {
	SetEX(key string, value string, expiration time.Duration) error
	Get(key string) (string, error)
	Exists(key string) (bool, error)
	Ping() error
}
