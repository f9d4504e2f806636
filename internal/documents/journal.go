package documents

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
)

// Type identifies a document kind in shared tables.
type Type string

const (
	TypeQuotation          Type = "quotation"
	TypeSalesOrder         Type = "sales_order"
	TypeDeliveryNote       Type = "delivery_note"
	TypeInvoice            Type = "invoice"
	TypeInvoiceReturn      Type = "invoice_return"
	TypeDeliveryNoteReturn Type = "delivery_note_return"
)

// Journal stores the append-only history and comments of every document.
type Journal interface {
	AppendHistory(ctx context.Context, doc Type, docID int64, entries ...HistoryEntry) error
	AddComments(ctx context.Context, doc Type, docID int64, comments ...Comment) error
	History(ctx context.Context, doc Type, docID int64) ([]HistoryEntry, error)
	Comments(ctx context.Context, doc Type, docID int64) ([]Comment, error)
}

// PGJournal is the PostgreSQL Journal. Writes join the transaction carried
// by ctx.
type PGJournal struct {
	pool *pgxpool.Pool
}

// NewPGJournal constructs a PGJournal.
func NewPGJournal(pool *pgxpool.Pool) *PGJournal {
	return &PGJournal{pool: pool}
}

func (j *PGJournal) AppendHistory(ctx context.Context, doc Type, docID int64, entries ...HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`INSERT INTO document_history (document_type, document_id, event_type, from_status, to_status, extra_info, actor_id)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, 0))`,
			string(doc), docID, string(e.EventType), e.FromStatus, e.ToStatus, e.ExtraInfo, e.ActorID)
	}
	return sendBatch(ctx, db.Conn(ctx, j.pool), batch, "append history")
}

func (j *PGJournal) AddComments(ctx context.Context, doc Type, docID int64, comments ...Comment) error {
	if len(comments) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range comments {
		batch.Queue(`INSERT INTO document_comments (document_type, document_id, body, author_id) VALUES ($1, $2, $3, NULLIF($4, 0))`,
			string(doc), docID, c.Body, c.AuthorID)
	}
	return sendBatch(ctx, db.Conn(ctx, j.pool), batch, "add comments")
}

func (j *PGJournal) History(ctx context.Context, doc Type, docID int64) ([]HistoryEntry, error) {
	rows, err := db.Conn(ctx, j.pool).Query(ctx, `SELECT id, event_type, COALESCE(from_status, ''), COALESCE(to_status, ''),
COALESCE(extra_info, ''), COALESCE(actor_id, 0), created_at
FROM document_history WHERE document_type = $1 AND document_id = $2 ORDER BY created_at, id`, string(doc), docID)
	if err != nil {
		return nil, fmt.Errorf("documents: history: %w", err)
	}
	defer rows.Close()
	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.FromStatus, &e.ToStatus, &e.ExtraInfo, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.EventType = EventType(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *PGJournal) Comments(ctx context.Context, doc Type, docID int64) ([]Comment, error) {
	rows, err := db.Conn(ctx, j.pool).Query(ctx, `SELECT id, body, COALESCE(author_id, 0), created_at
FROM document_comments WHERE document_type = $1 AND document_id = $2 ORDER BY created_at, id`, string(doc), docID)
	if err != nil {
		return nil, fmt.Errorf("documents: comments: %w", err)
	}
	defer rows.Close()
	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.Body, &c.AuthorID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func sendBatch(ctx context.Context, conn db.DBTX, batch *pgx.Batch, op string) error {
	results := conn.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("documents: %s: %w", op, err)
		}
	}
	return results.Close()
}

// MemoryJournal keeps journal entries in process; services use it in tests.
type MemoryJournal struct {
	mu       sync.Mutex
	nextID   int64
	history  map[string][]HistoryEntry
	comments map[string][]Comment
	// Err, when set, fails every write.
	Err error
}

// NewMemoryJournal returns an empty MemoryJournal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{history: map[string][]HistoryEntry{}, comments: map[string][]Comment{}}
}

func journalKey(doc Type, id int64) string { return fmt.Sprintf("%s/%d", doc, id) }

func (m *MemoryJournal) AppendHistory(_ context.Context, doc Type, docID int64, entries ...HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	key := journalKey(doc, docID)
	for _, e := range entries {
		m.nextID++
		e.ID = m.nextID
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}
		m.history[key] = append(m.history[key], e)
	}
	return nil
}

func (m *MemoryJournal) AddComments(_ context.Context, doc Type, docID int64, comments ...Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	key := journalKey(doc, docID)
	for _, c := range comments {
		m.nextID++
		c.ID = m.nextID
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}
		m.comments[key] = append(m.comments[key], c)
	}
	return nil
}

func (m *MemoryJournal) History(_ context.Context, doc Type, docID int64) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]HistoryEntry(nil), m.history[journalKey(doc, docID)]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryJournal) Comments(_ context.Context, doc Type, docID int64) ([]Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Comment(nil), m.comments[journalKey(doc, docID)]...), nil
}

// Events returns the event types recorded for a document in order.
func (m *MemoryJournal) Events(doc Type, docID int64) []EventType {
	entries, _ := m.History(context.Background(), doc, docID)
	out := make([]EventType, len(entries))
	for i, e := range entries {
		out[i] = e.EventType
	}
	return out
}
