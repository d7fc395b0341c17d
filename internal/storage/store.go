package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ListingDraft is a persisted, immutable-once-written listing record.
// ImageRefs holds the display references chosen per image (enhanced or
// original); the first entry is the primary image. SuggestedPrice always
// equals MaxProfitPrice.
type ListingDraft struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ImageRefs []string  `json:"imageRefs"`

	Brand          string `json:"brand"`
	Category       string `json:"category"`
	Title          string `json:"title"`
	Material       string `json:"material"`
	Condition      string `json:"condition"`
	ConditionScore string `json:"conditionScore"`
	Flaws          string `json:"flaws"`
	Description    string `json:"description"`

	SellProbability int `json:"sellProbability"`
	QuickSellPrice  int `json:"quickSellPrice"`
	MaxProfitPrice  int `json:"maxProfitPrice"`
	SuggestedPrice  int `json:"suggestedPrice"`
}

// DraftStore is a durable keyed collection of completed listings. Drafts are
// never updated in place; delete is the only store-level transition.
type DraftStore interface {
	Put(draft *ListingDraft) error
	// Get returns nil, nil if no draft exists with the given id.
	Get(id string) (*ListingDraft, error)
	GetAll() ([]ListingDraft, error)
	// Delete removes a draft. Deleting a non-existent id is a no-op.
	Delete(id string) error
	Close() error
}

// CredentialStore holds the single opaque inference credential.
type CredentialStore interface {
	// GetCredential returns "" when no credential is configured.
	GetCredential() (string, error)
	SetCredential(credential string) error
	ClearCredential() error
}

// SQLiteStore implements DraftStore and CredentialStore on a local SQLite
// database. The credential is encrypted at rest.
type SQLiteStore struct {
	db            *sql.DB
	encryptionKey []byte
	mu            sync.RWMutex
}

// NewSQLiteStore opens (creating if needed) the database at dbPath. The
// encryptionKey is used for the stored credential.
func NewSQLiteStore(dbPath string, encryptionKey []byte) (*SQLiteStore, error) {
	// WAL mode and busy timeout so concurrent reads tolerate a write.
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db, encryptionKey: encryptionKey}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	draftsQuery := `
	CREATE TABLE IF NOT EXISTS drafts (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		payload TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(draftsQuery); err != nil {
		return fmt.Errorf("failed to create drafts table: %w", err)
	}

	credentialQuery := `
	CREATE TABLE IF NOT EXISTS credential (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		encrypted TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(credentialQuery); err != nil {
		return fmt.Errorf("failed to create credential table: %w", err)
	}

	return nil
}

// Put writes a draft. The payload is stored as a single JSON document so the
// row is either fully present or absent; a concurrent reader never observes
// a partially written record.
func (s *SQLiteStore) Put(draft *ListingDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO drafts (id, created_at, payload) VALUES (?, ?, ?)`,
		draft.ID, draft.CreatedAt, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// Get retrieves a draft by id. Returns nil, nil if it doesn't exist.
func (s *SQLiteStore) Get(id string) (*ListingDraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	err := s.db.QueryRow(`SELECT payload FROM drafts WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query draft: %w", err)
	}

	return decodeDraft(payload)
}

// GetAll retrieves all drafts, newest first.
func (s *SQLiteStore) GetAll() ([]ListingDraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT payload FROM drafts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query drafts: %w", err)
	}
	defer rows.Close()

	var drafts []ListingDraft
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		draft, err := decodeDraft(payload)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, *draft)
	}

	return drafts, rows.Err()
}

// Delete removes a draft by id. No-op if the id doesn't exist.
func (s *SQLiteStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM drafts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// decodeDraft unmarshals a stored payload. Unknown fields are ignored;
// the suggested price invariant is restored for records written before it
// was enforced at write time.
func decodeDraft(payload string) (*ListingDraft, error) {
	var draft ListingDraft
	if err := json.Unmarshal([]byte(payload), &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	draft.SuggestedPrice = draft.MaxProfitPrice
	return &draft, nil
}

// GetCredential returns the decrypted credential, or "" when unset.
func (s *SQLiteStore) GetCredential() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var encrypted string
	err := s.db.QueryRow(`SELECT encrypted FROM credential WHERE id = 1`).Scan(&encrypted)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query credential: %w", err)
	}

	plaintext, err := Decrypt(encrypted, s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return string(plaintext), nil
}

// SetCredential stores the credential encrypted at rest.
func (s *SQLiteStore) SetCredential(credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encrypted, err := Encrypt([]byte(credential), s.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO credential (id, encrypted) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET
			encrypted = excluded.encrypted,
			updated_at = CURRENT_TIMESTAMP
	`, encrypted)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// ClearCredential removes the stored credential.
func (s *SQLiteStore) ClearCredential() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM credential WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
