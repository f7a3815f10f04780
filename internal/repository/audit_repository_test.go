package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masedocs/mase-audit-api/internal/models"
)

func TestListCompletedSessionsNewestFirst(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	now := time.Now()
	score := 72
	rows := sqlmock.NewRows([]string{"id", "user_id", "status", "global_score", "created_at", "completed_at"}).
		AddRow("s2", "u1", "completed", score, now, now).
		AddRow("s1", "u1", "completed", score, now.Add(-time.Hour), now.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, status, global_score, created_at, completed_at FROM audit_sessions WHERE user_id = $1 AND status = 'completed' ORDER BY completed_at DESC LIMIT $2")).
		WithArgs("u1", 10).
		WillReturnRows(rows)

	sessions, err := repo.ListCompletedSessions(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s2", sessions[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestCompletedSessionNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectQuery("SELECT id, user_id, status, global_score, created_at, completed_at FROM audit_sessions").
		WithArgs("u1").
		WillReturnError(sql.ErrNoRows)

	session, err := repo.LatestCompletedSession(context.Background(), "u1")
	assert.Nil(t, session)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDocumentFillsDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_documents").WillReturnResult(sqlmock.NewResult(1, 1))

	doc := &models.AuditDocument{SessionID: "s1", Name: "duer.pdf", StoragePath: "u1/s1/duer.pdf", SizeBytes: 1024}
	err := repo.CreateDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, models.DocumentStatusUploaded, doc.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUserAuditDataChildrenFirst(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM audit_results WHERE session_id IN (SELECT id FROM audit_sessions WHERE user_id = $1)")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM audit_documents WHERE session_id IN (SELECT id FROM audit_sessions WHERE user_id = $1)")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM audit_sessions WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.DeleteUserAuditData(context.Background(), "u1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUserAuditDataStopsOnDocumentFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("DELETE FROM audit_results").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM audit_documents").WithArgs("u1").WillReturnError(sql.ErrConnDone)

	err := repo.DeleteUserAuditData(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete audit documents")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDocumentPaths(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	rows := sqlmock.NewRows([]string{"storage_path"}).
		AddRow("u1/s1/a.pdf").
		AddRow("u1/s2/b.pdf")
	mock.ExpectQuery("SELECT d.storage_path FROM audit_documents d JOIN audit_sessions s").
		WithArgs("u1").
		WillReturnRows(rows)

	paths, err := repo.ListDocumentPaths(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1/s1/a.pdf", "u1/s2/b.pdf"}, paths)
	assert.NoError(t, mock.ExpectationsWereMet())
}
