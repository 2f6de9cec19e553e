// Package projection builds client-local timelines from observed messages.
// It handles ordering, deduplication, and the reconciliation of optimistic
// entries with server-confirmed copies. It never talks to the network.
package projection

import (
	"chatter/domain"
	"fmt"
	"sort"
)

// Merge folds an incoming batch (historical fetch or live push) into the
// locally held timeline and returns the new ordered, deduplicated list.
//
// Keying: a permanent ID wins, then the correlation id of an unconfirmed
// optimistic entry, then a structural fingerprint as last resort. An
// incoming message carrying both a permanent ID and a known correlation id
// replaces the optimistic entry in place, never duplicating it.
//
// Merge is a pure fold: inputs are not mutated, and reapplying the same
// batch, in any interleaving of overlapping batches, converges to the same
// final list.
func Merge(existing, incoming []domain.Message) []domain.Message {
	entries := make([]domain.Message, 0, len(existing)+len(incoming))
	byKey := make(map[string]int)
	dropped := make(map[int]bool)

	fold := func(message domain.Message) {
		if message.ID != "" && message.CorrelationID != "" {
			corr := correlationKey(message.CorrelationID)
			if idx, ok := byKey[corr]; ok {
				// Server confirmation of an optimistic entry: rekey it under
				// the permanent ID, keeping its position for tie ordering.
				// The correlation key stays mapped to the confirmed entry so
				// a stale optimistic copy in a later batch folds into it
				// instead of reappearing.
				merged := mergeEntry(entries[idx], message)
				if confirmed, exists := byKey[identityKey(message.ID)]; exists && confirmed != idx {
					entries[confirmed] = mergeEntry(entries[confirmed], merged)
					dropped[idx] = true
					byKey[corr] = confirmed
					return
				}
				entries[idx] = merged
				byKey[identityKey(message.ID)] = idx
				return
			}
		}

		key := keyOf(message)
		if idx, ok := byKey[key]; ok {
			entries[idx] = mergeEntry(entries[idx], message)
			if cid := entries[idx].CorrelationID; cid != "" && entries[idx].ID != "" {
				byKey[correlationKey(cid)] = idx
			}
			return
		}
		idx := len(entries)
		byKey[key] = idx
		if message.ID != "" && message.CorrelationID != "" {
			byKey[correlationKey(message.CorrelationID)] = idx
		}
		entries = append(entries, message)
	}

	for _, message := range existing {
		fold(message)
	}
	for _, message := range incoming {
		fold(message)
	}

	merged := make([]domain.Message, 0, len(entries))
	for i, entry := range entries {
		if !dropped[i] {
			merged = append(merged, entry)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged
}

func keyOf(message domain.Message) string {
	if message.ID != "" {
		return identityKey(message.ID)
	}
	if message.CorrelationID != "" {
		return correlationKey(message.CorrelationID)
	}
	return fmt.Sprintf("fp:%s|%s|%s|%s|%d",
		message.SenderID, message.ReceiverID, message.GroupID,
		message.Content, message.CreatedAt.UnixNano())
}

func identityKey(id string) string        { return "id:" + id }
func correlationKey(tempID string) string { return "tmp:" + tempID }

// mergeEntry combines two sightings of the same message. Later data wins
// per field, except that media survives from whichever side has it: an
// optimistic echo may omit media metadata the server fills in, and vice
// versa. Zero-valued incoming fields never erase known data.
func mergeEntry(old, incoming domain.Message) domain.Message {
	out := incoming
	if out.ID == "" {
		out.ID = old.ID
	}
	if out.CorrelationID == "" {
		out.CorrelationID = old.CorrelationID
	}
	if out.SenderID == "" {
		out.SenderID = old.SenderID
	}
	if out.ReceiverID == "" {
		out.ReceiverID = old.ReceiverID
	}
	if out.GroupID == "" {
		out.GroupID = old.GroupID
	}
	if out.Content == "" {
		out.Content = old.Content
	}
	if out.ParentID == "" {
		out.ParentID = old.ParentID
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = old.CreatedAt
	}
	if out.Media == nil {
		out.Media = old.Media
	}
	if out.ReadBy == nil {
		out.ReadBy = old.ReadBy
	}
	if out.Reactions == nil {
		out.Reactions = old.Reactions
	}
	return out
}
