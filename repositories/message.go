//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chatter/domain"
	"chatter/errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// IMessageRepository is the message store gateway the fan-out router depends
// on. Read-by and reaction mutations are set-semantic and atomic per message:
// concurrent writers never overwrite each other's entries.
type IMessageRepository interface {
	Create(message domain.Message) (domain.Message, error)
	FindByID(id string) (domain.Message, error)
	AppendReadBy(id, userID string) (bool, error)
	ToggleReaction(id, userID, reactionType string) (map[string][]string, error)
	SetReactions(id string, reactions map[string][]string) error
	Delete(id, requesterID string) (domain.Message, error)
	ListConversation(conv domain.Conversation, cursor *string) ([]domain.Message, *string, error)
	ListReplies(parentID string) ([]domain.Message, error)
	CountReplies(parentID string) (int, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// diskMessage is the on-disk shape of a message, CBOR-encoded.
type diskMessage struct {
	ID         string              `cbor:"id"`
	SenderID   string              `cbor:"sender"`
	ReceiverID string              `cbor:"receiver,omitempty"`
	GroupID    string              `cbor:"group,omitempty"`
	Content    string              `cbor:"content,omitempty"`
	MediaURL   string              `cbor:"media_url,omitempty"`
	MediaKind  string              `cbor:"media_kind,omitempty"`
	MediaName  string              `cbor:"media_name,omitempty"`
	ParentID   string              `cbor:"parent,omitempty"`
	At         int64               `cbor:"at"` // unix nanoseconds
	ReadBy     []string            `cbor:"read_by,omitempty"`
	Reactions  map[string][]string `cbor:"reactions,omitempty"`
}

// Key layout:
//
//	msg:{id}                              -> CBOR document (single source of truth)
//	conv:{conversation}:{ts_padded}:{id}  -> id (top-level timeline index)
//	thread:{parent_id}:{ts_padded}:{id}   -> id (reply index)
//
// The 19-digit zero-padded nanosecond timestamp makes lexicographical key
// order chronological; the trailing id disambiguates same-nanosecond writes.
// A reply is indexed only under its parent, never under the conversation, so
// timeline scans exclude threads by construction.
func docKey(id string) []byte {
	return []byte("msg:" + id)
}

func convPrefix(conv domain.Conversation) string {
	return fmt.Sprintf("conv:%s:", conv.Key())
}

func threadPrefix(parentID string) string {
	return fmt.Sprintf("thread:%s:", parentID)
}

func indexKey(message domain.Message) []byte {
	suffix := fmt.Sprintf("%019d:%s", message.CreatedAt.UnixNano(), message.ID)
	if message.IsReply() {
		return []byte(threadPrefix(message.ParentID) + suffix)
	}
	return []byte(convPrefix(message.Conversation()) + suffix)
}

// Create persists a new message, assigning its permanent ID and server
// timestamp. The correlation id travels on delivered events only and is
// deliberately not written to disk.
func (m MessageRepository) Create(message domain.Message) (domain.Message, error) {
	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	stored := message
	stored.CorrelationID = ""
	data, err := cbor.Marshal(toDiskMessage(stored))
	if err != nil {
		return domain.Message{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = m.update(func(txn *badger.Txn) error {
		if err := txn.Set(docKey(message.ID), data); err != nil {
			return err
		}
		return txn.Set(indexKey(message), []byte(message.ID))
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

func (m MessageRepository) FindByID(id string) (domain.Message, error) {
	var message domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		found, err := readDoc(txn, id)
		if err != nil {
			return err
		}
		message = found
		return nil
	})
	return message, err
}

// AppendReadBy adds userID to the message's read-by set. It reports whether
// the set actually changed, so callers can broadcast only real deltas.
func (m MessageRepository) AppendReadBy(id, userID string) (bool, error) {
	changed := false
	err := m.update(func(txn *badger.Txn) error {
		message, err := readDoc(txn, id)
		if err != nil {
			return err
		}
		if message.HasReadBy(userID) {
			changed = false
			return nil
		}
		message.ReadBy = append(message.ReadBy, userID)
		changed = true
		return writeDoc(txn, message)
	})
	return changed, err
}

// ToggleReaction flips userID's membership in the reaction-type set and
// returns the resulting full reaction map. The read-modify-write runs inside
// one transaction and retries on conflict, so two concurrent toggles by
// different users both survive.
func (m MessageRepository) ToggleReaction(id, userID, reactionType string) (map[string][]string, error) {
	var result map[string][]string
	err := m.update(func(txn *badger.Txn) error {
		message, err := readDoc(txn, id)
		if err != nil {
			return err
		}
		if message.Reactions == nil {
			message.Reactions = make(map[string][]string)
		}
		users := message.Reactions[reactionType]
		removed := false
		for i, u := range users {
			if u == userID {
				users = append(users[:i], users[i+1:]...)
				removed = true
				break
			}
		}
		if !removed {
			users = append(users, userID)
		}
		if len(users) == 0 {
			delete(message.Reactions, reactionType)
		} else {
			message.Reactions[reactionType] = users
		}
		result = copyReactions(message.Reactions)
		return writeDoc(txn, message)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetReactions overwrites the whole reaction map. Prefer ToggleReaction for
// concurrent toggles; this exists for administrative rewrites.
func (m MessageRepository) SetReactions(id string, reactions map[string][]string) error {
	return m.update(func(txn *badger.Txn) error {
		message, err := readDoc(txn, id)
		if err != nil {
			return err
		}
		message.Reactions = copyReactions(reactions)
		return writeDoc(txn, message)
	})
}

// Delete removes the document and its index entry. Only the sender may
// delete; replies of a deleted message are left dangling on purpose.
func (m MessageRepository) Delete(id, requesterID string) (domain.Message, error) {
	var deleted domain.Message
	err := m.update(func(txn *badger.Txn) error {
		message, err := readDoc(txn, id)
		if err != nil {
			return err
		}
		if message.SenderID != requesterID {
			return errors.ErrForbidden
		}
		if err := txn.Delete(docKey(id)); err != nil {
			return err
		}
		if err := txn.Delete(indexKey(message)); err != nil {
			return err
		}
		deleted = message
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}
	return deleted, nil
}

// ListConversation retrieves the top-level timeline of a conversation using
// a reverse prefix scan, newest first. Thanks to the padded timestamp in the
// key, messages are naturally sorted by time. It stops collecting once the
// configured limitMessages is reached and returns a cursor for the next page.
func (m MessageRepository) ListConversation(conv domain.Conversation, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := convPrefix(conv)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible key, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			var id []byte
			if err := item.Value(func(value []byte) error {
				id = append([]byte(nil), value...)
				return nil
			}); err != nil {
				return err
			}
			message, err := readDoc(txn, string(id))
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if lastKey == "" {
		// Nothing collected: the scan is exhausted, no next page.
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

// ListReplies returns the thread of a parent message, oldest first.
func (m MessageRepository) ListReplies(parentID string) ([]domain.Message, error) {
	var replies []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(threadPrefix(parentID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var id []byte
			if err := it.Item().Value(func(value []byte) error {
				id = append([]byte(nil), value...)
				return nil
			}); err != nil {
				return err
			}
			message, err := readDoc(txn, string(id))
			if err != nil {
				return err
			}
			replies = append(replies, message)
		}
		return nil
	})
	return replies, err
}

// CountReplies counts a thread without loading its documents.
func (m MessageRepository) CountReplies(parentID string) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(threadPrefix(parentID))
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// update wraps db.Update with a retry on transaction conflicts. Badger
// detects overlapping read-modify-write transactions and aborts one of them;
// retrying replays the closure against the winner's state, which is exactly
// the optimistic-concurrency behavior set-semantic mutations need.
func (m MessageRepository) update(fn func(txn *badger.Txn) error) error {
	for {
		err := m.db.Update(fn)
		if err != badger.ErrConflict {
			return err
		}
		m.log.Debug("Transaction conflict, retrying")
	}
}

func readDoc(txn *badger.Txn, id string) (domain.Message, error) {
	item, err := txn.Get(docKey(id))
	if err == badger.ErrKeyNotFound {
		return domain.Message{}, errors.ErrNotFound
	}
	if err != nil {
		return domain.Message{}, err
	}
	var disk diskMessage
	if err := item.Value(func(val []byte) error {
		return cbor.Unmarshal(val, &disk)
	}); err != nil {
		return domain.Message{}, err
	}
	return toMessage(disk), nil
}

func writeDoc(txn *badger.Txn, message domain.Message) error {
	data, err := cbor.Marshal(toDiskMessage(message))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(docKey(message.ID), data)
}

func copyReactions(reactions map[string][]string) map[string][]string {
	out := make(map[string][]string, len(reactions))
	for k, v := range reactions {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func toDiskMessage(message domain.Message) diskMessage {
	disk := diskMessage{
		ID:         message.ID,
		SenderID:   message.SenderID,
		ReceiverID: message.ReceiverID,
		GroupID:    message.GroupID,
		Content:    message.Content,
		ParentID:   message.ParentID,
		At:         message.CreatedAt.UnixNano(),
		ReadBy:     message.ReadBy,
		Reactions:  message.Reactions,
	}
	if message.Media != nil {
		disk.MediaURL = message.Media.URL
		disk.MediaKind = message.Media.Kind
		disk.MediaName = message.Media.Name
	}
	return disk
}

func toMessage(disk diskMessage) domain.Message {
	message := domain.Message{
		ID:         disk.ID,
		SenderID:   disk.SenderID,
		ReceiverID: disk.ReceiverID,
		GroupID:    disk.GroupID,
		Content:    disk.Content,
		ParentID:   disk.ParentID,
		CreatedAt:  time.Unix(0, disk.At).UTC(),
		ReadBy:     disk.ReadBy,
		Reactions:  disk.Reactions,
	}
	if disk.MediaURL != "" || disk.MediaName != "" {
		message.Media = &domain.Media{
			URL:  disk.MediaURL,
			Kind: disk.MediaKind,
			Name: disk.MediaName,
		}
	}
	return message
}
