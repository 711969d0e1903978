// Package prefs persists the user preference pair in a local YAML file.
package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dkeye/randomic/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	keyAutoReconnect = "auto_reconnect"
	keyTheme         = "theme"
)

type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	d := domain.DefaultPreferences()
	v.SetDefault(keyAutoReconnect, d.AutoReconnect)
	v.SetDefault(keyTheme, string(d.Theme))
	return v
}

// Load reads the stored preferences. A missing file yields the defaults.
func (s *Store) Load() (domain.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.newViper()
	if _, err := os.Stat(s.path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return domain.DefaultPreferences(), fmt.Errorf("read prefs: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return domain.DefaultPreferences(), fmt.Errorf("stat prefs: %w", err)
	}

	var p domain.Preferences
	if err := v.Unmarshal(&p); err != nil {
		return domain.DefaultPreferences(), fmt.Errorf("parse prefs: %w", err)
	}
	if p.Theme != domain.ThemeDark {
		p.Theme = domain.ThemeLight
	}
	log.Debug().Str("module", "prefs").Bool("auto_reconnect", p.AutoReconnect).Str("theme", string(p.Theme)).Msg("loaded")
	return p, nil
}

func (s *Store) Save(p domain.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("prefs dir: %w", err)
	}
	v := s.newViper()
	v.Set(keyAutoReconnect, p.AutoReconnect)
	v.Set(keyTheme, string(p.Theme))
	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	log.Info().Str("module", "prefs").Bool("auto_reconnect", p.AutoReconnect).Str("theme", string(p.Theme)).Msg("saved")
	return nil
}
