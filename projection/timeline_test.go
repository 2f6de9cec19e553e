package projection

import (
	"testing"
	"time"

	"chatter/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_Merge_Confirms_Optimistic_Entry_In_Place(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	// Given a local optimistic entry awaiting its echo
	optimistic := domain.Message{
		CorrelationID: "tmp-1",
		SenderID:      "alice",
		ReceiverID:    "bob",
		Content:       "hello",
		CreatedAt:     at,
	}
	timeline := Merge(nil, []domain.Message{optimistic})
	req.Len(timeline, 1)

	// When the server echo arrives with the permanent ID
	echo := optimistic
	echo.ID = uuid.NewString()
	timeline = Merge(timeline, []domain.Message{echo})

	// Then the entry is replaced, never duplicated
	req.Len(timeline, 1)
	req.Equal(echo.ID, timeline[0].ID)
	req.Equal("hello", timeline[0].Content)
}

func Test_Merge_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	batch := []domain.Message{
		{ID: "m1", SenderID: "alice", Content: "one", CreatedAt: at},
		{ID: "m2", SenderID: "bob", Content: "two", CreatedAt: at.Add(time.Second)},
	}

	once := Merge(nil, batch)
	twice := Merge(once, batch)
	req.Equal(once, twice)
}

func Test_Merge_Overlapping_Batches_Converge(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	m1 := domain.Message{ID: "m1", SenderID: "alice", Content: "one", CreatedAt: at}
	m2 := domain.Message{ID: "m2", SenderID: "bob", Content: "two", CreatedAt: at.Add(time.Second)}
	m3 := domain.Message{ID: "m3", SenderID: "alice", Content: "three", CreatedAt: at.Add(2 * time.Second)}

	// History fetch and live push overlap on m2
	historyFirst := Merge(Merge(nil, []domain.Message{m1, m2}), []domain.Message{m2, m3})
	pushFirst := Merge(Merge(nil, []domain.Message{m2, m3}), []domain.Message{m1, m2})

	req.Equal(historyFirst, pushFirst)
	req.Len(historyFirst, 3)
	req.Equal("m1", historyFirst[0].ID)
	req.Equal("m3", historyFirst[2].ID)
}

func Test_Merge_Echo_After_History_Already_Contains_Confirmed_Copy(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()
	id := uuid.NewString()

	optimistic := domain.Message{CorrelationID: "tmp-1", SenderID: "alice", Content: "hi", CreatedAt: at}
	confirmed := domain.Message{ID: id, SenderID: "alice", Content: "hi", CreatedAt: at}
	echo := domain.Message{ID: id, CorrelationID: "tmp-1", SenderID: "alice", Content: "hi", CreatedAt: at}

	// A history refetch delivered the confirmed copy before the live echo
	timeline := Merge([]domain.Message{optimistic, confirmed}, []domain.Message{echo})
	req.Len(timeline, 1)
	req.Equal(id, timeline[0].ID)
}

func Test_Merge_Reapplied_Optimistic_Entry_After_Confirmation_Folds_In(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	optimistic := domain.Message{CorrelationID: "tmp-1", SenderID: "alice", ReceiverID: "bob", Content: "hi", CreatedAt: at}
	echo := optimistic
	echo.ID = uuid.NewString()

	// Given an optimistic entry already confirmed by its echo
	timeline := Merge(Merge(nil, []domain.Message{optimistic}), []domain.Message{echo})
	req.Len(timeline, 1)

	// When a pending-draft replay brings the optimistic copy back, as a
	// reconnect does after the history fetch already held the confirmed one
	timeline = Merge(timeline, []domain.Message{optimistic})

	// Then it folds into the confirmed entry instead of duplicating it
	req.Len(timeline, 1)
	req.Equal(echo.ID, timeline[0].ID)
	req.Equal("tmp-1", timeline[0].CorrelationID)

	// And replaying the whole overlapping batch converges too
	timeline = Merge(timeline, []domain.Message{optimistic, echo})
	req.Len(timeline, 1)
}

func Test_Merge_Confirmed_Entry_Keeps_Its_Correlation_Key(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()
	id := uuid.NewString()

	// A history fetch can deliver the confirmed copy with both identifiers
	// before the client ever folded the optimistic one.
	confirmed := domain.Message{ID: id, CorrelationID: "tmp-1", SenderID: "alice", ReceiverID: "bob", Content: "hi", CreatedAt: at}
	optimistic := domain.Message{CorrelationID: "tmp-1", SenderID: "alice", ReceiverID: "bob", Content: "hi", CreatedAt: at}

	timeline := Merge(Merge(nil, []domain.Message{confirmed}), []domain.Message{optimistic})
	req.Len(timeline, 1)
	req.Equal(id, timeline[0].ID)
}

func Test_Merge_Zero_Fields_Never_Erase_Known_Data(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()
	id := uuid.NewString()

	withMedia := domain.Message{
		ID:        id,
		SenderID:  "alice",
		Media:     &domain.Media{URL: "https://cdn.example/pic.png", Kind: "image"},
		CreatedAt: at,
	}
	withoutMedia := domain.Message{
		ID:        id,
		SenderID:  "alice",
		ReadBy:    []string{"bob"},
		CreatedAt: at,
	}

	timeline := Merge([]domain.Message{withMedia}, []domain.Message{withoutMedia})
	req.Len(timeline, 1)
	req.NotNil(timeline[0].Media)
	req.Equal([]string{"bob"}, timeline[0].ReadBy)
}

func Test_Merge_Sorts_By_Timestamp(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	later := domain.Message{ID: "m2", CreatedAt: at.Add(time.Minute)}
	earlier := domain.Message{ID: "m1", CreatedAt: at}

	timeline := Merge(nil, []domain.Message{later, earlier})
	req.Equal("m1", timeline[0].ID)
	req.Equal("m2", timeline[1].ID)
}

func Test_Merge_Inputs_Not_Mutated(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	existing := []domain.Message{{ID: "m1", Content: "old", CreatedAt: at}}
	incoming := []domain.Message{{ID: "m1", Content: "new", CreatedAt: at}}

	_ = Merge(existing, incoming)
	req.Equal("old", existing[0].Content)
}
