package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivi-tora/mfc/internal/model"
	"github.com/vivi-tora/mfc/internal/pkg/clock"
)

func TestSQLLogRepository_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "logs.db")
	fake := clock.NewFake(testStart)

	repo, err := newSQLLogRepository(DialectSQLite, path, fake)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Write(ctx, model.LogEntry{
			Level:   model.LevelInfo,
			Message: fmt.Sprintf("entry %d", i),
			Details: model.TextPayload("detail"),
			Response: model.ResponseInfo{
				Status: 200,
				Body:   map[string]any{"status": "SUCCESS"},
			}.Payload(),
		}))
		fake.Advance(time.Second)
	}
	require.NoError(t, repo.Close())

	reopened, err := newSQLLogRepository(DialectSQLite, path, fake)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Read(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "entry 2", got[0].Message)
	assert.Equal(t, "entry 1", got[1].Message)
	assert.Equal(t, testStart.Add(2*time.Second), got[0].Timestamp)
	assert.Equal(t, "detail", got[0].Details.Text())
	assert.True(t, got[0].Data.IsZero())

	resp, ok := model.DecodeResponse(got[0].Response)
	require.True(t, ok)
	assert.Equal(t, "SUCCESS", resp.Body.(map[string]any)["status"])
	assert.NoError(t, reopened.Ping(ctx))
}

func TestSQLLogRepository_UnknownDialect(t *testing.T) {
	_, err := NewSQLLogRepository(Dialect("oracle"), "x")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &SQLLogRepository{dialect: DialectPostgres}
	assert.Equal(t, "VALUES ($1, $2, $3)", pg.rebind("VALUES (?, ?, ?)"))

	my := &SQLLogRepository{dialect: DialectMySQL}
	assert.Equal(t, "VALUES (?, ?)", my.rebind("VALUES (?, ?)"))
}
