// Package memory persists and retrieves conversation turns in a hosted vector
// index, strictly scoped by user identifier.
//
// Failure policy: best-effort memory. Write errors are returned to callers so
// they can be logged, but the chat pipeline never lets them block a response;
// read paths absorb upstream failures and return empty results.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mindmend/backend/internal/config"
	"github.com/mindmend/backend/internal/model/chat"
)

var (
	ErrUserIDRequired  = errors.New("user id is required")
	ErrContentRequired = errors.New("content is required")
	ErrRoleRequired    = errors.New("role is required")
)

// queryPlaceholder stands in when a retrieval query is empty: an embedding of
// something is still needed to search the index.
const queryPlaceholder = "recent conversation"

// overFetchFactor over-requests matches so the client-side user filter can
// discard strays without starving the caller of results.
const overFetchFactor = 3

const deleteBatchSize = 100

// Embedder is the slice of the embedding client the store consumes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the conversation store client. Safe for concurrent use.
type Store struct {
	index    *indexClient
	embedder Embedder
}

// NewStore wires the store against the configured index and embedder.
func NewStore(cfg config.MemoryConfig, embedder Embedder) *Store {
	return &Store{
		index:    newIndexClient(cfg.Host, cfg.APIKey, cfg.Namespace),
		embedder: embedder,
	}
}

// Store embeds content and upserts one conversation record. The record ID is
// prefixed with the user ID so the user's records can later be re-derived by
// prefix listing (the index has no filtered delete).
func (s *Store) Store(ctx context.Context, userID, content, role string, extra map[string]any) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrUserIDRequired
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrContentRequired
	}
	if strings.TrimSpace(role) == "" {
		return "", ErrRoleRequired
	}

	values, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("embed content: %w", err)
	}

	now := time.Now().UTC()
	id := recordID(userID, now)

	metadata := map[string]any{
		"userId":    userID,
		"uid":       userID,
		"role":      role,
		"content":   content,
		"timestamp": float64(now.UnixMilli()),
	}
	for k, v := range extra {
		metadata[k] = v
	}

	if err := s.index.upsert(ctx, []vector{{ID: id, Values: values, Metadata: metadata}}); err != nil {
		return "", fmt.Errorf("upsert record: %w", err)
	}

	return id, nil
}

// Retrieve returns up to topK stored turns semantically similar to query,
// newest first. The index is queried with a strict userId equality filter and
// results are re-checked client-side: a record whose metadata names another
// user is discarded even if the server-side filter let it through. Upstream
// failures yield an empty slice, never an error.
func (s *Store) Retrieve(ctx context.Context, userID, query string, topK int) ([]chat.Record, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if topK <= 0 {
		topK = 5
	}

	if strings.TrimSpace(query) == "" {
		query = queryPlaceholder
	}

	values, err := s.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("[memory] query embedding failed, returning no context: %v", err)
		return nil, nil
	}

	filter := map[string]any{"userId": map[string]any{"$eq": userID}}
	matches, err := s.index.query(ctx, values, topK*overFetchFactor, filter)
	if err != nil {
		log.Printf("[memory] retrieval failed, returning no context: %v", err)
		return nil, nil
	}

	records := make([]chat.Record, 0, len(matches))
	for _, m := range matches {
		rec, ok := recordFromMetadata(m.ID, m.Metadata)
		if !ok {
			continue
		}
		if rec.UserID != userID {
			log.Printf("[memory] discarding record %s owned by another user", m.ID)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if len(records) > topK {
		records = records[:topK]
	}

	return records, nil
}

// Recent lists the user's latest stored turns in chronological order.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]chat.Record, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if limit <= 0 {
		limit = 20
	}

	records, err := s.userRecords(ctx, userID)
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	if len(records) > limit {
		records = records[len(records)-limit:]
	}

	return records, nil
}

// DeleteUser removes every record belonging to the user by re-deriving the
// user-scoped IDs, and reports how many were deleted.
func (s *Store) DeleteUser(ctx context.Context, userID string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrUserIDRequired
	}

	ids, err := s.index.listIDs(ctx, userID+"-")
	if err != nil {
		return 0, fmt.Errorf("list user records: %w", err)
	}

	for start := 0; start < len(ids); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := s.index.deleteByID(ctx, ids[start:end]); err != nil {
			return start, fmt.Errorf("delete user records: %w", err)
		}
	}

	return len(ids), nil
}

// Stats aggregates turn counts for the user.
func (s *Store) Stats(ctx context.Context, userID string) (chat.Stats, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return chat.Stats{}, ErrUserIDRequired
	}

	records, err := s.userRecords(ctx, userID)
	if err != nil {
		return chat.Stats{}, err
	}

	stats := chat.Stats{MessageCount: len(records)}
	for _, rec := range records {
		switch rec.Role {
		case chat.RoleUser:
			stats.UserTurns++
		case chat.RoleAssistant:
			stats.AssistantTurns++
		}
	}
	return stats, nil
}

func (s *Store) userRecords(ctx context.Context, userID string) ([]chat.Record, error) {
	ids, err := s.index.listIDs(ctx, userID+"-")
	if err != nil {
		return nil, fmt.Errorf("list user records: %w", err)
	}

	records := make([]chat.Record, 0, len(ids))
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		vectors, err := s.index.fetch(ctx, ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("fetch user records: %w", err)
		}
		for id, v := range vectors {
			rec, ok := recordFromMetadata(id, v.Metadata)
			if !ok || rec.UserID != userID {
				continue
			}
			records = append(records, rec)
		}
	}

	return records, nil
}

func recordID(userID string, at time.Time) string {
	return fmt.Sprintf("%s-%d-%s", userID, at.UnixMilli(), uuid.NewString()[:8])
}

func recordFromMetadata(id string, metadata map[string]any) (chat.Record, bool) {
	if metadata == nil {
		return chat.Record{}, false
	}

	owner, _ := metadata["userId"].(string)
	if owner == "" {
		// Backup field, kept for records written before userId was mandatory.
		owner, _ = metadata["uid"].(string)
	}
	content, _ := metadata["content"].(string)
	role, _ := metadata["role"].(string)
	if owner == "" || content == "" {
		return chat.Record{}, false
	}

	rec := chat.Record{
		ID:      id,
		UserID:  owner,
		Role:    role,
		Content: content,
	}
	if millis, ok := metadata["timestamp"].(float64); ok {
		rec.Timestamp = time.UnixMilli(int64(millis)).UTC()
	}
	if label, ok := metadata["emotion"].(string); ok {
		rec.Emotion = label
	}
	if score, ok := metadata["emotionScore"].(float64); ok {
		rec.Score = score
	}
	return rec, true
}
