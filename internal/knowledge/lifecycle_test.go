package knowledge

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"design-workers/internal/common/logger"
	"design-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLifecycleStore struct {
	stale      []models.KnowledgeObject
	listErr    error
	failIDs    map[string]bool
	cutoff     time.Time
	maxQuality float64
	deprecated []string
}

func (f *fakeLifecycleStore) ListStale(_ context.Context, cutoff time.Time, maxQuality float64) ([]models.KnowledgeObject, error) {
	f.cutoff = cutoff
	f.maxQuality = maxQuality
	return f.stale, f.listErr
}

func (f *fakeLifecycleStore) Deprecate(_ context.Context, id, _ string) (*models.KnowledgeObject, error) {
	if f.failIDs[id] {
		return nil, errors.New("write failed")
	}
	f.deprecated = append(f.deprecated, id)
	return &models.KnowledgeObject{ID: id, Status: models.StatusDeprecated}, nil
}

func TestLifecycle_Sweep(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeLifecycleStore{
		stale:   []models.KnowledgeObject{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		failIDs: map[string]bool{"b": true},
	}
	lc := NewLifecycle(store, 120*24*time.Hour, 0.3, logger.NewTestLogger(t))
	lc.now = func() time.Time { return now }

	res, err := lc.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, now.Add(-120*24*time.Hour), store.cutoff)
	assert.Equal(t, 0.3, store.maxQuality)
	assert.Equal(t, 3, res.Checked)
	assert.Equal(t, []string{"a", "c"}, res.Deprecated)
	assert.Equal(t, []string{"b"}, res.Failed)
}

func TestLifecycle_Sweep_ListError(t *testing.T) {
	store := &fakeLifecycleStore{listErr: errors.New("db down")}
	lc := NewLifecycle(store, time.Hour, 0.3, logger.NewNoOpLogger())

	_, err := lc.Sweep(context.Background())
	assert.Error(t, err)
}

func TestLifecycle_Sweep_DeprecatesPromotedObjectOnceStale(t *testing.T) {
	store, mock, pub, _ := createTestStore(t)

	// 0.4 clears the 0.3 promotion floor but sits under the 0.5 retirement bar.
	lowRow := func(status string) []driver.Value {
		row := objectRow("k1", "", status)
		row[8] = 0.4
		return row
	}

	expectGet(mock, "k1", lowRow("experimental"))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE knowledge_objects SET status = \$2`).
		WithArgs("k1", "active", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO knowledge_audit`).
		WithArgs("k1", "promote", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	promoted, err := store.Promote(context.Background(), "k1")
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, promoted.Status)

	mock.ExpectQuery(`WHERE status = 'active' AND COALESCE\(updated_at, created_at\) < \$1 AND quality_score < \$2`).
		WithArgs(sqlmock.AnyArg(), 0.5).
		WillReturnRows(sqlmock.NewRows(objectCols).AddRow(lowRow("active")...))
	expectGet(mock, "k1", lowRow("active"))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE knowledge_objects SET status = \$2`).
		WithArgs("k1", "deprecated", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO knowledge_audit`).
		WithArgs("k1", "deprecate", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	lc := NewLifecycle(store, 120*24*time.Hour, 0.5, logger.NewTestLogger(t))
	lc.now = func() time.Time { return time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC) }

	res, err := lc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Checked)
	assert.Equal(t, []string{"k1"}, res.Deprecated)

	require.Len(t, pub.events, 2)
	assert.Equal(t, "active", pub.events[1].FromStatus)
	assert.Equal(t, "deprecated", pub.events[1].ToStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}
