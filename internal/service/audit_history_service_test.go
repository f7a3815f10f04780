package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masedocs/mase-audit-api/internal/models"
	appErrors "github.com/masedocs/mase-audit-api/pkg/errors"
)

type memMirror struct {
	data   map[string][]byte
	getErr error
}

func (m *memMirror) Get(_ context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memMirror) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *memMirror) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	return true, m.Set(ctx, key, value, ttl)
}

func (m *memMirror) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

type memObjects struct {
	stored  map[string]bool
	removed []string
}

func (m *memObjects) Upload(_ context.Context, key string, _ io.Reader, _ int64, _ string) error {
	if m.stored == nil {
		m.stored = map[string]bool{}
	}
	m.stored[key] = true
	return nil
}

func (m *memObjects) Remove(_ context.Context, key string) error {
	m.removed = append(m.removed, key)
	delete(m.stored, key)
	return nil
}

func (m *memObjects) PublicURL(key string) string { return "http://objects.local/" + key }

type fakeAuditStore struct {
	sessions   []models.AuditSession
	docs       map[string][]models.AuditDocument
	paths      []string
	listErr    error
	docErrFor  string
	deleteErr  error
	deletedFor []string
}

func (f *fakeAuditStore) CreateSession(_ context.Context, session *models.AuditSession) error {
	session.ID = "new-session"
	return nil
}

func (f *fakeAuditStore) FindSession(_ context.Context, _ string, sessionID string) (*models.AuditSession, error) {
	for i := range f.sessions {
		if f.sessions[i].ID == sessionID {
			return &f.sessions[i], nil
		}
	}
	return nil, sqlNoRows()
}

func (f *fakeAuditStore) ListCompletedSessions(_ context.Context, _ string, _ int) ([]models.AuditSession, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.sessions, nil
}

func (f *fakeAuditStore) CreateDocument(_ context.Context, doc *models.AuditDocument) error {
	doc.ID = "new-doc"
	return nil
}

func (f *fakeAuditStore) FindDocument(_ context.Context, documentID string) (*models.AuditDocument, error) {
	for _, docs := range f.docs {
		for i := range docs {
			if docs[i].ID == documentID {
				return &docs[i], nil
			}
		}
	}
	return nil, sqlNoRows()
}

func (f *fakeAuditStore) ListDocumentsBySession(_ context.Context, sessionID string) ([]models.AuditDocument, error) {
	if sessionID == f.docErrFor {
		return nil, errors.New("documents unavailable")
	}
	return f.docs[sessionID], nil
}

func (f *fakeAuditStore) ListDocumentPaths(context.Context, string) ([]string, error) {
	return f.paths, nil
}

func (f *fakeAuditStore) UpdateDocumentResult(context.Context, string, models.AuditDocumentStatus, *float64, string) error {
	return nil
}

func (f *fakeAuditStore) UpdateSessionStatus(context.Context, string, models.AuditSessionStatus) error {
	return nil
}

func (f *fakeAuditStore) CompleteSession(context.Context, string, int, time.Time) error {
	return nil
}

func (f *fakeAuditStore) CreateResult(context.Context, *models.AuditResult) error { return nil }

func (f *fakeAuditStore) ListResultsBySession(context.Context, string) ([]models.AuditResult, error) {
	return nil, nil
}

func (f *fakeAuditStore) DeleteUserAuditData(_ context.Context, userID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedFor = append(f.deletedFor, userID)
	return nil
}

func completedSession(id string, score int, completedAt time.Time) models.AuditSession {
	return models.AuditSession{
		ID:          id,
		UserID:      "u1",
		Status:      models.AuditStatusCompleted,
		GlobalScore: &score,
		CompletedAt: &completedAt,
	}
}

func TestHistoryEnrichesEntriesAndWritesMirror(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeAuditStore{
		sessions: []models.AuditSession{
			completedSession("s2", 80, now),
			completedSession("s1", 60, now.Add(-time.Hour)),
		},
		docs: map[string][]models.AuditDocument{
			"s2": {
				analyzedDoc("duer.pdf", 90),
				{Name: "attente.pdf", Status: models.DocumentStatusUploaded},
			},
			"s1": {analyzedDoc("politique.pdf", 60)},
		},
	}
	mirror := &memMirror{}
	svc := NewAuditHistoryService(AuditHistoryParams{
		Audits:  store,
		Mirror:  mirror,
		Objects: &memObjects{},
	})

	resp, err := svc.History(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, resp.Stale)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "s2", resp.Entries[0].Session.ID)
	assert.Equal(t, 1, resp.Entries[0].DocumentsAnalyzed)
	assert.Len(t, resp.Entries[0].AxisScores, 5)
	assert.Empty(t, resp.Entries[0].MissingDocuments)
	assert.Equal(t, []string{"politique.pdf"}, resp.Entries[1].MissingDocuments)

	_, ok := mirror.data[auditMirrorKeyPrefix+"u1"]
	assert.True(t, ok, "mirror should hold the recent entries")
}

func TestHistoryMirrorCapsEntries(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeAuditStore{docs: map[string][]models.AuditDocument{}}
	for i := 0; i < 8; i++ {
		id := string(rune('a' + i))
		store.sessions = append(store.sessions, completedSession(
			id, 70, now.Add(-time.Duration(i)*time.Hour)))
		store.docs[id] = []models.AuditDocument{analyzedDoc("duer.pdf", 85)}
	}
	mirror := &memMirror{}
	svc := NewAuditHistoryService(AuditHistoryParams{
		Audits:     store,
		Mirror:     mirror,
		Objects:    &memObjects{},
		MirrorSize: 5,
	})

	resp, err := svc.History(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, resp.Entries, 8)

	var mirrored []models.AuditHistoryEntry
	require.NoError(t, json.Unmarshal(mirror.data[auditMirrorKeyPrefix+"u1"], &mirrored))
	assert.Len(t, mirrored, 5)
	assert.Equal(t, "a", mirrored[0].Session.ID)
}

func TestHistoryFallsBackToMirrorOnDatabaseFailure(t *testing.T) {
	now := time.Now().UTC()
	mirror := &memMirror{}
	entry := models.AuditHistoryEntry{Session: completedSession("s1", 75, now)}
	raw, err := json.Marshal([]models.AuditHistoryEntry{entry})
	require.NoError(t, err)
	mirror.data = map[string][]byte{auditMirrorKeyPrefix + "u1": raw}

	svc := NewAuditHistoryService(AuditHistoryParams{
		Audits:  &fakeAuditStore{listErr: errors.New("connection refused")},
		Mirror:  mirror,
		Objects: &memObjects{},
	})

	resp, err := svc.History(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, resp.Stale)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "s1", resp.Entries[0].Session.ID)
}

func TestHistoryEmptyWhenDatabaseAndMirrorEmpty(t *testing.T) {
	svc := NewAuditHistoryService(AuditHistoryParams{
		Audits:  &fakeAuditStore{listErr: errors.New("connection refused")},
		Mirror:  &memMirror{},
		Objects: &memObjects{},
	})

	resp, err := svc.History(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, resp.Stale)
	assert.Empty(t, resp.Entries)
}

func TestHistoryEmptyWithoutMirror(t *testing.T) {
	svc := NewAuditHistoryService(AuditHistoryParams{
		Audits:  &fakeAuditStore{listErr: errors.New("connection refused")},
		Objects: &memObjects{},
	})

	resp, err := svc.History(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, resp.Stale)
	assert.Empty(t, resp.Entries)
}

func TestHistoryOmitsOrphanSessions(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeAuditStore{
		sessions: []models.AuditSession{
			completedSession("orphan", 0, now),
			completedSession("real", 72, now.Add(-time.Hour)),
		},
		docs: map[string][]models.AuditDocument{
			"real": {analyzedDoc("duer.pdf", 72)},
		},
	}
	svc := NewAuditHistoryService(AuditHistoryParams{
		Audits:  store,
		Mirror:  &memMirror{},
		Objects: &memObjects{},
	})

	resp, err := svc.History(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "real", resp.Entries[0].Session.ID)
}

func TestLatestSkipsOrphanSessions(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeAuditStore{
		sessions: []models.AuditSession{
			completedSession("orphan", 0, now),
			completedSession("real", 72, now.Add(-time.Hour)),
		},
		docs: map[string][]models.AuditDocument{
			"real": {analyzedDoc("duer.pdf", 72)},
		},
	}
	svc := NewAuditHistoryService(AuditHistoryParams{
		Audits:  store,
		Mirror:  &memMirror{},
		Objects: &memObjects{},
	})

	entry, err := svc.Latest(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "real", entry.Session.ID)
}

func TestLatestNotFoundWhenOnlyOrphansExist(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeAuditStore{
		sessions: []models.AuditSession{completedSession("orphan", 0, now)},
		docs:     map[string][]models.AuditDocument{},
	}
	svc := NewAuditHistoryService(AuditHistoryParams{
		Audits:  store,
		Mirror:  &memMirror{},
		Objects: &memObjects{},
	})

	_, err := svc.Latest(context.Background(), "u1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestHistoryMissingDocumentsListsScoresUnderThreshold(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeAuditStore{
		sessions: []models.AuditSession{completedSession("s1", 70, now)},
		docs: map[string][]models.AuditDocument{
			"s1": {
				analyzedDoc("weak.pdf", 55),
				analyzedDoc("strong.pdf", 90),
				{Name: "pending.pdf", Status: models.DocumentStatusUploaded},
			},
		},
	}
	svc := NewAuditHistoryService(AuditHistoryParams{
		Audits:  store,
		Mirror:  &memMirror{},
		Objects: &memObjects{},
	})

	resp, err := svc.History(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, []string{"weak.pdf"}, resp.Entries[0].MissingDocuments)
}

func TestHistorySkipsSessionWithUnreadableDocuments(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeAuditStore{
		sessions: []models.AuditSession{
			completedSession("s2", 80, now),
			completedSession("s1", 60, now.Add(-time.Hour)),
		},
		docs:      map[string][]models.AuditDocument{"s1": {analyzedDoc("duer.pdf", 60)}},
		docErrFor: "s2",
	}
	svc := NewAuditHistoryService(AuditHistoryParams{
		Audits:  store,
		Mirror:  &memMirror{},
		Objects: &memObjects{},
	})

	resp, err := svc.History(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "s1", resp.Entries[0].Session.ID)
}

func TestClearRemovesObjectsThenRowsThenMirror(t *testing.T) {
	mirror := &memMirror{data: map[string][]byte{auditMirrorKeyPrefix + "u1": []byte("[]")}}
	objects := &memObjects{}
	store := &fakeAuditStore{paths: []string{"u1/s1/a.pdf", "u1/s1/b.pdf"}}
	svc := NewAuditHistoryService(AuditHistoryParams{
		Audits:  store,
		Mirror:  mirror,
		Objects: objects,
	})

	require.NoError(t, svc.Clear(context.Background(), "u1"))
	assert.Equal(t, []string{"u1/s1/a.pdf", "u1/s1/b.pdf"}, objects.removed)
	assert.Equal(t, []string{"u1"}, store.deletedFor)
	_, ok := mirror.data[auditMirrorKeyPrefix+"u1"]
	assert.False(t, ok)
}

func TestClearEmptyHistoryIsIdempotent(t *testing.T) {
	store := &fakeAuditStore{}
	svc := NewAuditHistoryService(AuditHistoryParams{
		Audits:  store,
		Mirror:  &memMirror{},
		Objects: &memObjects{},
	})

	require.NoError(t, svc.Clear(context.Background(), "u1"))
	require.NoError(t, svc.Clear(context.Background(), "u1"))
}

func TestUploadRejectedOnCompletedSession(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeAuditStore{sessions: []models.AuditSession{completedSession("s1", 70, now)}}
	svc := NewAuditHistoryService(AuditHistoryParams{
		Audits:  store,
		Mirror:  &memMirror{},
		Objects: &memObjects{},
	})

	_, err := svc.UploadDocument(context.Background(), "u1", "s1", "duer.pdf", "application/pdf", nil, 0)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrSessionFinalized.Code, appErr.Code)
}

func TestUploadStoresObjectAndRecordsRow(t *testing.T) {
	store := &fakeAuditStore{
		sessions: []models.AuditSession{{ID: "s1", UserID: "u1", Status: models.AuditStatusUpload}},
	}
	objects := &memObjects{}
	svc := NewAuditHistoryService(AuditHistoryParams{
		Audits:  store,
		Mirror:  &memMirror{},
		Objects: objects,
	})

	resp, err := svc.UploadDocument(context.Background(), "u1", "s1", "duer.pdf", "application/pdf", nil, 128)
	require.NoError(t, err)
	assert.Equal(t, "u1/s1/duer.pdf", resp.Document.StoragePath)
	assert.True(t, objects.stored["u1/s1/duer.pdf"])
	assert.Contains(t, resp.URL, "u1/s1/duer.pdf")
}
