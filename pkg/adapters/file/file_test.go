package file_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/branchpoll/pkg/adapters/file"
	"github.com/aretw0/branchpoll/pkg/domain"
	"github.com/aretw0/branchpoll/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T, path string, opts ...file.Option) *file.Store {
	t.Helper()
	store, err := file.Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func samplePoll(owner int64) *domain.Poll {
	return &domain.Poll{
		Name:      "coffee",
		OwnerID:   owner,
		CreatedAt: time.Now().UTC(),
		PollGraph: domain.PollGraph{Questions: []domain.Question{
			{Text: "Coffee?", Answers: []domain.Answer{{Text: "Yes", NextQuestion: domain.Next(1)}, {Text: "No"}}},
			{Text: "Milk?", Level: 1, Answers: []domain.Answer{{Text: "Yes"}, {Text: "No"}}},
		}},
	}
}

func TestFileSessionStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, file.NewSessionStore(t.TempDir()))
}

func TestFileStore_PollContract(t *testing.T) {
	ports.RunPollStoreContract(t, open(t, filepath.Join(t.TempDir(), file.DefaultSnapshotName)))
}

func TestFileStore_TallyContract(t *testing.T) {
	ports.RunTallyStoreContract(t, open(t, filepath.Join(t.TempDir(), file.DefaultSnapshotName), file.WithFlushInterval(0)))
}

func TestFileStore_ReopenRestoresState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", file.DefaultSnapshotName)

	store, err := file.Open(path, file.WithFlushInterval(0))
	require.NoError(t, err)
	id, err := store.Create(ctx, samplePoll(77))
	require.NoError(t, err)
	_, err = store.Increment(ctx, id, 0, "Yes")
	require.NoError(t, err)
	_, err = store.Increment(ctx, id, 1, "No")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := open(t, path, file.WithFlushInterval(0))
	p, err := reopened.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "coffee", p.Name)
	assert.True(t, samplePoll(77).Graph().Equal(p.Graph()))

	counts, err := reopened.Counts(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts.Get(0, "Yes"))
	assert.EqualValues(t, 1, counts.Get(1, "No"))

	polls, err := reopened.ListByOwner(ctx, 77)
	require.NoError(t, err)
	assert.Len(t, polls, 1)

	next, err := reopened.Create(ctx, samplePoll(77))
	require.NoError(t, err)
	assert.Equal(t, id+1, next, "the counter survives a restart")
}

func TestFileStore_Layout(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), file.DefaultSnapshotName)
	store := open(t, path, file.WithFlushInterval(0))

	id, err := store.Create(ctx, samplePoll(5))
	require.NoError(t, err)
	_, err = store.Increment(ctx, id, 0, "Yes")
	require.NoError(t, err)
	require.NoError(t, store.Flush(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "polls")
	assert.Contains(t, raw, "admin_polls")
	assert.Contains(t, raw, "poll_results")
	assert.JSONEq(t, "1", string(raw["poll_id_counter"]))
	assert.JSONEq(t, `{"5":[1]}`, string(raw["admin_polls"]))
	assert.JSONEq(t, `{"1":{"0":{"Yes":1}}}`, string(raw["poll_results"]))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestFileStore_PeriodicFlush(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), file.DefaultSnapshotName)
	store := open(t, path, file.WithFlushInterval(10*time.Millisecond))

	_, err := store.Increment(ctx, 3, 0, "Yes")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		var snap file.Snapshot
		if json.Unmarshal(data, &snap) != nil {
			return false
		}
		return snap.PollResults[3].Get(0, "Yes") == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFileStore_DeleteDropsTallies(t *testing.T) {
	ctx := context.Background()
	store := open(t, filepath.Join(t.TempDir(), file.DefaultSnapshotName), file.WithFlushInterval(0))
	id, err := store.Create(ctx, samplePoll(1))
	require.NoError(t, err)
	_, _ = store.Increment(ctx, id, 0, "Yes")

	require.NoError(t, store.Delete(ctx, id))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Polls)
	assert.Empty(t, snap.AdminPolls)
	assert.Empty(t, snap.PollResults)
}

func TestFileStore_CorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), file.DefaultSnapshotName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := file.Open(path)
	assert.Error(t, err)
}

func TestFileStore_InvalidGraphInSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), file.DefaultSnapshotName)
	body := `{"polls":{"1":{"id":1,"name":"x","owner_id":1,"questions":[]}},"poll_id_counter":1}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := file.Open(path)
	assert.ErrorIs(t, err, domain.ErrEmptyGraph)
}

func TestFileSessionStore_EscapesRespondent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := file.NewSessionStore(dir)
	key := domain.SessionKey{PollID: 1, RespondentID: "../../etc/passwd"}

	require.NoError(t, store.Save(ctx, domain.NewSessionState(key, 0)))
	loaded, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, loaded.SessionKey)

	entries, err := os.ReadDir(filepath.Join(dir, "1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.Error(t, store.Save(ctx, domain.NewSessionState(domain.SessionKey{PollID: 1}, 0)))
}
