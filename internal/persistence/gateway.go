package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OussamaSEBROU/the-senctuary/internal/entity"
	"github.com/OussamaSEBROU/the-senctuary/internal/pkg/logger"
	"github.com/OussamaSEBROU/the-senctuary/pkg/kv"

	"github.com/google/uuid"
)

// ErrStorageQuotaExceeded means even the reduced form did not fit. The
// in-memory state is still correct; the caller decides whether to warn.
var ErrStorageQuotaExceeded = errors.New("persistence: storage quota exceeded")

// Gateway serializes the whole conversation collection to one key of a
// durable key-value store. Writes are replace-in-full; the store
// guarantees no torn values.
type Gateway struct {
	store     kv.Store
	key       string
	softLimit int // bytes; payloads above this go straight to the reduced form
	logger    logger.ILogger
}

func NewGateway(store kv.Store, key string, softLimitBytes int, log logger.ILogger) *Gateway {
	return &Gateway{
		store:     store,
		key:       key,
		softLimit: softLimitBytes,
		logger:    log,
	}
}

// Load reads the stored collection. Absent or corrupt data yields an empty
// collection: losing history is preferable to failing startup.
func (g *Gateway) Load(ctx context.Context) []*entity.Conversation {
	raw, found, err := g.store.Get(ctx, g.key)
	if err != nil {
		g.logger.Warn("PersistenceGateway", "Failed to read stored conversations, starting empty", map[string]interface{}{
			"error": err.Error(),
		})
		return []*entity.Conversation{}
	}
	if !found {
		return []*entity.Conversation{}
	}

	var conversations []*entity.Conversation
	if err := json.Unmarshal([]byte(raw), &conversations); err != nil {
		g.logger.Warn("PersistenceGateway", "Stored conversations are corrupt, starting empty", map[string]interface{}{
			"error": err.Error(),
		})
		return []*entity.Conversation{}
	}
	return conversations
}

// Save writes the full collection. If the payload exceeds the soft limit,
// or the store refuses it for capacity, Save retries once with the
// document bytes stripped from every conversation except the active one.
// That degradation is lossy and deliberate: a stripped conversation keeps
// its axioms and turns but can only be re-grounded by re-upload.
func (g *Gateway) Save(ctx context.Context, conversations []*entity.Conversation, activeID uuid.UUID) error {
	payload, err := json.Marshal(conversations)
	if err != nil {
		return fmt.Errorf("persistence: marshal: %w", err)
	}

	if g.softLimit <= 0 || len(payload) <= g.softLimit {
		err = g.store.Set(ctx, g.key, string(payload))
		if err == nil {
			return nil
		}
		if !errors.Is(err, kv.ErrQuotaExceeded) {
			return fmt.Errorf("persistence: write: %w", err)
		}
	}

	reduced, err := json.Marshal(stripInactive(conversations, activeID))
	if err != nil {
		return fmt.Errorf("persistence: marshal reduced: %w", err)
	}

	g.logger.Warn("PersistenceGateway", "Writing reduced form, document bytes stripped from inactive conversations", map[string]interface{}{
		"full_bytes":    len(payload),
		"reduced_bytes": len(reduced),
	})

	if err := g.store.Set(ctx, g.key, string(reduced)); err != nil {
		if errors.Is(err, kv.ErrQuotaExceeded) {
			return ErrStorageQuotaExceeded
		}
		return fmt.Errorf("persistence: write reduced: %w", err)
	}
	return nil
}

// stripInactive clones the collection and drops EncodedBytes everywhere
// but the active conversation. The caller's records are never mutated
// here, and none of them escape into the marshaled output.
func stripInactive(conversations []*entity.Conversation, activeID uuid.UUID) []*entity.Conversation {
	out := make([]*entity.Conversation, len(conversations))
	for i, c := range conversations {
		cp := c.Clone()
		if c.Id != activeID {
			cp.Manuscript.EncodedBytes = ""
		}
		out[i] = cp
	}
	return out
}
