package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/olekukonko/tablewriter"
)

// storedMessage mirrors the on-disk CBOR shape of a message document.
type storedMessage struct {
	ID         string              `cbor:"id"`
	SenderID   string              `cbor:"sender"`
	ReceiverID string              `cbor:"receiver,omitempty"`
	GroupID    string              `cbor:"group,omitempty"`
	Content    string              `cbor:"content,omitempty"`
	MediaKind  string              `cbor:"media_kind,omitempty"`
	ParentID   string              `cbor:"parent,omitempty"`
	At         int64               `cbor:"at"`
	ReadBy     []string            `cbor:"read_by,omitempty"`
	Reactions  map[string][]string `cbor:"reactions,omitempty"`
}

func main() {
	dbPath := flag.String("db", "/tmp/chatter", "Path to badger DB")
	// Document keys by default; conv: and thread: are index entries
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Conversation", "Sender", "Timestamp", "Kind", "Content", "Read", "Reactions"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			// Index entries hold only the document id, nothing to decode
			if strings.HasPrefix(key, "conv:") || strings.HasPrefix(key, "thread:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				var m storedMessage
				if err := cbor.Unmarshal(v, &m); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", key, err)
					return nil
				}

				conversation := "d:" + m.ReceiverID
				if m.GroupID != "" {
					conversation = "g:" + shorten(m.GroupID)
				}

				kind := "text"
				switch {
				case m.MediaKind != "":
					kind = m.MediaKind
				case m.ParentID != "":
					kind = "reply"
				}

				content := m.Content
				if len(content) > 40 {
					content = content[:40] + "…"
				}

				table.Append([]string{
					shorten(m.ID),
					conversation,
					m.SenderID,
					time.Unix(0, m.At).UTC().Format("15:04:05"),
					kind,
					content,
					fmt.Sprintf("%d", len(m.ReadBy)),
					fmt.Sprintf("%d", len(m.Reactions)),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// shorten keeps the first 8 characters of a UUID for readability.
func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)
	return badger.Open(opts)
}
