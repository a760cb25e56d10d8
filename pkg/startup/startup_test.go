package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/logger"
)

type journal struct {
	events []string
}

func (j *journal) dep(name string, requires ...string) Dependency {
	return Dependency{
		Name:     name,
		Requires: requires,
		StartFunc: func(context.Context) error {
			j.events = append(j.events, "start:"+name)
			return nil
		},
		StopFunc: func(context.Context) error {
			j.events = append(j.events, "stop:"+name)
			return nil
		},
	}
}

func TestStartup_DependencyOrder(t *testing.T) {
	j := &journal{}
	s := NewStartup(logger.Nop(), 1)
	s.AddDependency(j.dep("http", "database", "redis"))
	s.AddDependency(j.dep("database"))
	s.AddDependency(j.dep("redis"))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start:database", "start:redis", "start:http"}, j.events)
	assert.Equal(t, StartupStatusStarted, s.Status("http"))

	j.events = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop:http", "stop:redis", "stop:database"}, j.events)
}

func TestStartup_RetriesThenSucceeds(t *testing.T) {
	attempts := 0
	s := NewStartup(logger.Nop(), 3)
	s.backoffUnit = time.Millisecond
	s.AddDependency(Dependency{Name: "database", StartFunc: func(context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("connection refused")
		}
		return nil
	}})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 2, attempts)
}

func TestStartup_GivesUp(t *testing.T) {
	s := NewStartup(logger.Nop(), 2)
	s.backoffUnit = time.Millisecond
	s.AddDependency(Dependency{Name: "database", StartFunc: func(context.Context) error {
		return errors.New("connection refused")
	}})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, StartupStatusFailed, s.Status("database"))
}

func TestStartup_UnknownDependency(t *testing.T) {
	s := NewStartup(logger.Nop(), 1)
	s.AddDependency(Dependency{Name: "http", Requires: []string{"database"}})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dependency 'database'")
}
