// Package schedules loads fee schedule documents with viper, either from a
// directory of <exchange>.yaml files or from the built-in defaults.
package schedules

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/fd1az/depth-compare/business/fees/domain"
	"github.com/fd1az/depth-compare/internal/apperror"
)

//go:embed defaults/*.yaml
var defaults embed.FS

// Store holds schedules loaded once at startup.
type Store struct {
	dir string

	mu        sync.RWMutex
	schedules map[string]*domain.Schedule
}

// NewStore creates a Store reading from dir, or from the built-in documents
// when dir is empty.
func NewStore(dir string) *Store {
	return &Store{
		dir:       dir,
		schedules: make(map[string]*domain.Schedule),
	}
}

// LoadAll loads and validates a schedule per exchange. It fails on the first
// missing or invalid document.
func (s *Store) LoadAll(exchanges []string) error {
	for _, ex := range exchanges {
		sched, err := s.load(ex)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.schedules[ex] = sched
		s.mu.Unlock()
	}
	return nil
}

// Schedule implements app.ScheduleStore.
func (s *Store) Schedule(exchange string) (*domain.Schedule, error) {
	s.mu.RLock()
	sched, ok := s.schedules[exchange]
	s.mu.RUnlock()
	if !ok {
		return nil, apperror.New(apperror.CodeFeeScheduleNotFound, apperror.WithContext(exchange))
	}
	return sched, nil
}

// Exchanges lists the loaded schedules.
func (s *Store) Exchanges() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.schedules))
	for ex := range s.schedules {
		out = append(out, ex)
	}
	return out
}

func (s *Store) load(exchange string) (*domain.Schedule, error) {
	raw, err := s.read(exchange)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperror.New(apperror.CodeFeeScheduleNotFound,
				apperror.WithCause(err),
				apperror.WithContext(exchange))
		}
		return nil, apperror.New(apperror.CodeFeeScheduleInvalid,
			apperror.WithCause(err),
			apperror.WithContext(exchange))
	}

	sched, err := Parse(raw)
	if err != nil {
		return nil, apperror.New(apperror.CodeFeeScheduleInvalid,
			apperror.WithCause(err),
			apperror.WithContext(exchange))
	}
	if sched.Exchange != exchange {
		return nil, apperror.New(apperror.CodeFeeScheduleInvalid,
			apperror.WithCause(fmt.Errorf("document is for %q", sched.Exchange)),
			apperror.WithContext(exchange))
	}
	return sched, nil
}

func (s *Store) read(exchange string) ([]byte, error) {
	name := strings.ToLower(exchange) + ".yaml"
	if s.dir == "" {
		return defaults.ReadFile("defaults/" + name)
	}
	return os.ReadFile(filepath.Join(s.dir, name))
}

// Parse decodes one YAML schedule document.
func Parse(raw []byte) (*domain.Schedule, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	var doc document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc.toSchedule()
}
