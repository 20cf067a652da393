package webui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRegistry_ReusesLiveSession(t *testing.T) {
	r := newSessionRegistry(time.Minute)
	created := 0
	mk := func() (*userSession, error) {
		created++
		return &userSession{}, nil
	}

	s1, err := r.acquire("tok", mk)
	require.NoError(t, err)
	s2, err := r.acquire("tok", mk)
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.Equal(t, 1, created)
}

func TestSessionRegistry_ExpiresIdleSessions(t *testing.T) {
	r := newSessionRegistry(time.Minute)
	now := time.Unix(0, 0)
	r.now = func() time.Time { return now }

	created := 0
	mk := func() (*userSession, error) {
		created++
		return &userSession{}, nil
	}

	s1, err := r.acquire("tok", mk)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	s2, err := r.acquire("tok", mk)
	require.NoError(t, err)

	assert.NotSame(t, s1, s2)
	assert.Equal(t, 2, created)
}

func TestSessionRegistry_Drop(t *testing.T) {
	r := newSessionRegistry(time.Minute)
	created := 0
	mk := func() (*userSession, error) {
		created++
		return &userSession{}, nil
	}

	_, err := r.acquire("tok", mk)
	require.NoError(t, err)
	r.drop("tok")
	_, err = r.acquire("tok", mk)
	require.NoError(t, err)

	assert.Equal(t, 2, created)
}
