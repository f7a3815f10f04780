package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masedocs/mase-audit-api/internal/models"
)

func TestRegistryAddAndList(t *testing.T) {
	store := &memMirror{}
	svc := NewRegistryService(store, nil, 30)

	require.NoError(t, svc.Add(context.Background(), models.RegistryEntry{
		UserID:    "u1",
		SessionID: "s1",
		Name:      "duer.pdf",
		Source:    models.RegistrySourceUpload,
		AxisLabel: models.AxisManagementCommitment,
	}))
	require.NoError(t, svc.Add(context.Background(), models.RegistryEntry{
		UserID:    "u1",
		SessionID: "s2",
		Name:      "plan-prevention.pdf",
		Source:    models.RegistrySourceGenerated,
		AxisLabel: models.AxisWorkPreparation,
	}))

	all, err := svc.List(context.Background(), "u1", models.RegistryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	uploads, err := svc.List(context.Background(), "u1", models.RegistryFilter{Source: models.RegistrySourceUpload})
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, "duer.pdf", uploads[0].Name)

	bySession, err := svc.List(context.Background(), "u1", models.RegistryFilter{SessionID: "s2"})
	require.NoError(t, err)
	require.Len(t, bySession, 1)
	assert.Equal(t, "plan-prevention.pdf", bySession[0].Name)
}

func TestRegistryListNewestFirst(t *testing.T) {
	store := &memMirror{}
	svc := NewRegistryService(store, nil, 30)

	now := time.Now().UTC()
	require.NoError(t, svc.Add(context.Background(), models.RegistryEntry{
		UserID: "u1", SessionID: "s1", Name: "old.pdf", Source: models.RegistrySourceUpload,
		AddedAt: now.Add(-48 * time.Hour),
	}))
	require.NoError(t, svc.Add(context.Background(), models.RegistryEntry{
		UserID: "u1", SessionID: "s1", Name: "new.pdf", Source: models.RegistrySourceUpload,
		AddedAt: now,
	}))

	entries, err := svc.List(context.Background(), "u1", models.RegistryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "new.pdf", entries[0].Name)
}

func TestRegistrySweepDropsExpiredEntries(t *testing.T) {
	store := &memMirror{}
	svc := NewRegistryService(store, nil, 30)

	now := time.Now().UTC()
	require.NoError(t, svc.Add(context.Background(), models.RegistryEntry{
		UserID: "u1", SessionID: "s1", Name: "expired.pdf", Source: models.RegistrySourceUpload,
		AddedAt: now.Add(-31 * 24 * time.Hour),
	}))
	require.NoError(t, svc.Add(context.Background(), models.RegistryEntry{
		UserID: "u1", SessionID: "s1", Name: "fresh.pdf", Source: models.RegistrySourceUpload,
		AddedAt: now.Add(-24 * time.Hour),
	}))

	entries, err := svc.List(context.Background(), "u1", models.RegistryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh.pdf", entries[0].Name)

	// The sweep rewrites the stored set, so the expired entry is gone
	// for good, not just filtered from this listing.
	var stored []models.RegistryEntry
	require.NoError(t, json.Unmarshal(store.data[registryKeyPrefix+"u1"], &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, "fresh.pdf", stored[0].Name)
}

func TestRegistryRemoveBySession(t *testing.T) {
	store := &memMirror{}
	svc := NewRegistryService(store, nil, 30)

	require.NoError(t, svc.Add(context.Background(), models.RegistryEntry{
		UserID: "u1", SessionID: "s1", Name: "a.pdf", Source: models.RegistrySourceUpload,
	}))
	require.NoError(t, svc.Add(context.Background(), models.RegistryEntry{
		UserID: "u1", SessionID: "s2", Name: "b.pdf", Source: models.RegistrySourceUpload,
	}))

	require.NoError(t, svc.RemoveBySession(context.Background(), "u1", "s1"))

	entries, err := svc.List(context.Background(), "u1", models.RegistryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b.pdf", entries[0].Name)
}

func TestRegistryClear(t *testing.T) {
	store := &memMirror{}
	svc := NewRegistryService(store, nil, 30)

	require.NoError(t, svc.Add(context.Background(), models.RegistryEntry{
		UserID: "u1", SessionID: "s1", Name: "a.pdf", Source: models.RegistrySourceUpload,
	}))
	require.NoError(t, svc.Clear(context.Background(), "u1"))

	entries, err := svc.List(context.Background(), "u1", models.RegistryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
