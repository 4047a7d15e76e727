package persistence

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/OussamaSEBROU/the-senctuary/internal/entity"
	"github.com/OussamaSEBROU/the-senctuary/internal/pkg/logger"
	"github.com/OussamaSEBROU/the-senctuary/pkg/kv"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// cappedStore refuses values over a hard byte limit, standing in for a
// storage backend that is nearly full.
type cappedStore struct {
	values map[string]string
	limit  int
}

func newCappedStore(limit int) *cappedStore {
	return &cappedStore{values: map[string]string{}, limit: limit}
}

func (s *cappedStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *cappedStore) Set(ctx context.Context, key, value string) error {
	if s.limit > 0 && len(value) > s.limit {
		return kv.ErrQuotaExceeded
	}
	s.values[key] = value
	return nil
}

func (s *cappedStore) Delete(ctx context.Context, key string) error {
	delete(s.values, key)
	return nil
}

func testLogger(t *testing.T) logger.ILogger {
	t.Helper()
	return logger.NewIsolatedLogger(filepath.Join(t.TempDir(), "test.log"))
}

func sampleConversation(encoded string) *entity.Conversation {
	return &entity.Conversation{
		Id:    uuid.New(),
		Title: "Sample",
		Manuscript: entity.Manuscript{
			Id:           uuid.New(),
			DisplayName:  "sample.pdf",
			EncodedBytes: encoded,
			CreatedAt:    time.Now(),
		},
		Axioms: []entity.Axiom{{Label: "Axiom", Explanation: "Holds."}},
		Turns: []entity.Turn{
			{Speaker: "user", Text: "hello", CreatedAt: time.Now()},
			{Speaker: "assistant", Text: "hi", CreatedAt: time.Now()},
		},
		LastActivityAt: time.Now(),
	}
}

func TestGatewayRoundTrip(t *testing.T) {
	store, err := kv.NewFileStore(t.TempDir(), 0)
	assert.NoError(t, err)
	g := NewGateway(store, "sanctuary:conversations", 0, testLogger(t))
	ctx := context.Background()

	conv := sampleConversation("JVBERi0=")
	assert.NoError(t, g.Save(ctx, []*entity.Conversation{conv}, conv.Id))

	loaded := g.Load(ctx)
	assert.Len(t, loaded, 1)
	assert.Equal(t, conv.Id, loaded[0].Id)
	assert.Equal(t, "JVBERi0=", loaded[0].Manuscript.EncodedBytes)
	assert.Len(t, loaded[0].Turns, 2)
}

func TestGatewayLoadFailsOpen(t *testing.T) {
	store, err := kv.NewFileStore(t.TempDir(), 0)
	assert.NoError(t, err)
	g := NewGateway(store, "sanctuary:conversations", 0, testLogger(t))
	ctx := context.Background()

	// Absent key
	assert.Empty(t, g.Load(ctx))

	// Corrupt value
	assert.NoError(t, store.Set(ctx, "sanctuary:conversations", "{not json"))
	assert.Empty(t, g.Load(ctx))
}

func TestGatewayQuotaTriggersReducedForm(t *testing.T) {
	active := sampleConversation("QUNUSVZF")
	inactive := sampleConversation("SU5BQ1RJVkVJTkFDVElWRUlOQUNUSVZFSU5BQ1RJVkU=")

	full, err := json.Marshal([]*entity.Conversation{inactive, active})
	assert.NoError(t, err)

	// Tight enough to refuse the full payload, loose enough for the
	// reduced one.
	store := newCappedStore(len(full) - 1)
	g := NewGateway(store, "k", 0, testLogger(t))
	ctx := context.Background()

	assert.NoError(t, g.Save(ctx, []*entity.Conversation{inactive, active}, active.Id))

	loaded := g.Load(ctx)
	assert.Len(t, loaded, 2)
	// The inactive record lost its bytes but kept axioms and turns.
	assert.Empty(t, loaded[0].Manuscript.EncodedBytes)
	assert.Len(t, loaded[0].Axioms, 1)
	assert.Len(t, loaded[0].Turns, 2)
	// The active record is intact.
	assert.Equal(t, "QUNUSVZF", loaded[1].Manuscript.EncodedBytes)

	// Live records were not mutated by the stripping.
	assert.NotEmpty(t, inactive.Manuscript.EncodedBytes)
}

func TestGatewaySoftLimitSkipsFullWrite(t *testing.T) {
	store := newCappedStore(0)
	g := NewGateway(store, "k", 64, testLogger(t))
	ctx := context.Background()

	conv := sampleConversation("QkxPQVRFRBASEBASEBASEBASEBASEBASEBASEBASEBASEBAS")
	other := sampleConversation("T1RIRVJCWVRFU09USEVSQllURVNPVEhFUkJZVEVT")

	assert.NoError(t, g.Save(ctx, []*entity.Conversation{conv, other}, conv.Id))

	loaded := g.Load(ctx)
	assert.Len(t, loaded, 2)
	assert.NotEmpty(t, loaded[0].Manuscript.EncodedBytes)
	assert.Empty(t, loaded[1].Manuscript.EncodedBytes)
}

func TestGatewayReducedFormStillTooLarge(t *testing.T) {
	store := newCappedStore(8)
	g := NewGateway(store, "k", 0, testLogger(t))
	ctx := context.Background()

	conv := sampleConversation("QQ==")
	err := g.Save(ctx, []*entity.Conversation{conv}, conv.Id)
	assert.ErrorIs(t, err, ErrStorageQuotaExceeded)
}
