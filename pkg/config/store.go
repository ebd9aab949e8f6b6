package config

import (
	"github.com/spf13/viper"

	"github.com/ajitpratap0/formtap/pkg/errors"
)

// Store reads the JSON config file and merges updates back into it without
// disturbing unrelated keys. The OAuth refresh flow uses it to persist new
// token pairs.
type Store struct {
	path  string
	viper *viper.Viper
}

// NewStore opens the config file at path.
func NewStore(path string) (*Store, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load config file")
	}
	return &Store{path: path, viper: v}, nil
}

// Config unmarshals the stored configuration.
func (s *Store) Config() (*Config, error) {
	var cfg Config
	if err := s.viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file")
	}
	return &cfg, nil
}

// Update merges the given keys into the stored config and rewrites the file.
// Keys not named in updates keep their existing values.
func (s *Store) Update(updates map[string]interface{}) error {
	for key, value := range updates {
		s.viper.Set(key, value)
	}
	if err := s.viper.WriteConfig(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to write config file")
	}
	return nil
}

// Path returns the on-disk location of the config file.
func (s *Store) Path() string {
	return s.path
}
