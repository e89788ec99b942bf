package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnforceRetention_DeletesOldRows(t *testing.T) {
	s := newTestStore(t)

	now := time.Now()
	old := now.AddDate(0, 0, -40)
	for i := 0; i < 10; i++ {
		_, err := s.Insert(old.Add(time.Duration(i)*time.Minute).Unix(), 500, nil)
		require.NoError(t, err)
	}
	_, err := s.Insert(now.Unix(), 600, nil)
	require.NoError(t, err)

	deleted, err := s.EnforceRetention(DefaultMaxSizeGB, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(10), deleted)

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEnforceRetention_NothingToDelete(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Insert(time.Now().Unix(), 500, nil)
	require.NoError(t, err)

	deleted, err := s.EnforceRetention(DefaultMaxSizeGB, 30)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestEnforceRetention_SizeCapTightensWindow(t *testing.T) {
	s := newTestStore(t)

	now := time.Now()
	// Spread rows over the last five days so tightening the window has
	// something to cut.
	for day := 0; day < 5; day++ {
		base := now.AddDate(0, 0, -day)
		for i := 0; i < 50; i++ {
			_, err := s.Insert(base.Add(-time.Duration(i)*time.Minute).Unix(), 500+i, fptr(21.0))
			require.NoError(t, err)
		}
	}

	before, err := s.Count()
	require.NoError(t, err)

	// A cap far below any real SQLite file size forces the loop down to one
	// day of raw data.
	deleted, err := s.EnforceRetention(0.0000001, 30)
	require.NoError(t, err)
	assert.Positive(t, deleted)

	after, err := s.Count()
	require.NoError(t, err)
	assert.Less(t, after, before)

	// Data from the last day survives even under pressure.
	assert.Positive(t, after)
}

func TestVacuum(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Vacuum())
}
