package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fasttransfer/relay/internal/domain/entities"
	_ "modernc.org/sqlite"
)

// SQLiteMetadata is the MetadataRepository backed by SQLite. The
// schema is fixed; configuration selects retention policy and limits,
// never table identity.
type SQLiteMetadata struct {
	db *sql.DB
}

// NewSQLiteMetadata opens (or creates) the metadata database.
// Concurrent downloads all write the same counter row, so writers must
// wait out a locked database instead of failing fast.
func NewSQLiteMetadata(dbPath string) (*SQLiteMetadata, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, &entities.PersistenceError{Op: "open", Err: err}
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, &entities.PersistenceError{Op: "ping", Err: err}
	}

	repo := &SQLiteMetadata{db: db}
	if err := repo.initTables(); err != nil {
		return nil, &entities.PersistenceError{Op: "init", Err: err}
	}
	return repo, nil
}

func (r *SQLiteMetadata) Close() error {
	return r.db.Close()
}

func (r *SQLiteMetadata) initTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transfers (
		id TEXT PRIMARY KEY,
		sender_email TEXT NOT NULL DEFAULT '',
		receiver_email TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		download_count INTEGER NOT NULL DEFAULT 0,
		total_size INTEGER NOT NULL,
		file_count INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		transfer_id TEXT NOT NULL,
		original_name TEXT NOT NULL,
		saved_name TEXT NOT NULL,
		size INTEGER NOT NULL,
		mime_type TEXT NOT NULL DEFAULT 'application/octet-stream',
		uploaded_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_files_transfer_id ON files(transfer_id);
	CREATE INDEX IF NOT EXISTS idx_transfers_expires_at ON transfers(expires_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

func (r *SQLiteMetadata) CreateTransfer(ctx context.Context, transfer *entities.Transfer, files []*entities.File) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &entities.PersistenceError{Op: "create transfer", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transfers (id, sender_email, receiver_email, message,
			created_at, expires_at, download_count, total_size, file_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		transfer.ID,
		transfer.SenderEmail,
		transfer.ReceiverEmail,
		transfer.Message,
		transfer.CreatedAt.UTC(),
		transfer.ExpiresAt.UTC(),
		transfer.DownloadCount,
		transfer.TotalSize,
		transfer.FileCount,
	)
	if err != nil {
		return &entities.PersistenceError{Op: "create transfer", Err: err}
	}

	for _, f := range files {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO files (id, transfer_id, original_name, saved_name, size, mime_type, uploaded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.TransferID, f.OriginalName, f.SavedName, f.Size, f.MimeType, f.UploadedAt.UTC(),
		)
		if err != nil {
			return &entities.PersistenceError{Op: "create file", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &entities.PersistenceError{Op: "create transfer", Err: err}
	}
	return nil
}

func (r *SQLiteMetadata) GetTransfer(ctx context.Context, id string) (*entities.Transfer, error) {
	var t entities.Transfer
	err := r.db.QueryRowContext(ctx, `
		SELECT id, sender_email, receiver_email, message, created_at,
			expires_at, download_count, total_size, file_count
		FROM transfers WHERE id = ?`, id).Scan(
		&t.ID, &t.SenderEmail, &t.ReceiverEmail, &t.Message,
		&t.CreatedAt, &t.ExpiresAt, &t.DownloadCount, &t.TotalSize, &t.FileCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entities.ErrTransferNotFound
	}
	if err != nil {
		return nil, &entities.PersistenceError{Op: "get transfer", Err: err}
	}
	return &t, nil
}

func (r *SQLiteMetadata) ListFiles(ctx context.Context, transferID string) ([]*entities.File, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, transfer_id, original_name, saved_name, size, mime_type, uploaded_at
		FROM files WHERE transfer_id = ? ORDER BY uploaded_at, id`, transferID)
	if err != nil {
		return nil, &entities.PersistenceError{Op: "list files", Err: err}
	}
	defer rows.Close()

	var files []*entities.File
	for rows.Next() {
		var f entities.File
		if err := rows.Scan(&f.ID, &f.TransferID, &f.OriginalName, &f.SavedName,
			&f.Size, &f.MimeType, &f.UploadedAt); err != nil {
			return nil, &entities.PersistenceError{Op: "list files", Err: err}
		}
		files = append(files, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, &entities.PersistenceError{Op: "list files", Err: err}
	}
	return files, nil
}

func (r *SQLiteMetadata) GetFile(ctx context.Context, transferID, fileID string) (*entities.File, error) {
	var f entities.File
	err := r.db.QueryRowContext(ctx, `
		SELECT id, transfer_id, original_name, saved_name, size, mime_type, uploaded_at
		FROM files WHERE id = ? AND transfer_id = ?`, fileID, transferID).Scan(
		&f.ID, &f.TransferID, &f.OriginalName, &f.SavedName, &f.Size, &f.MimeType, &f.UploadedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entities.ErrFileNotFound
	}
	if err != nil {
		return nil, &entities.PersistenceError{Op: "get file", Err: err}
	}
	return &f, nil
}

func (r *SQLiteMetadata) IncrementDownloadCount(ctx context.Context, transferID string) error {
	// The increment happens in the database so concurrent downloads
	// never lose updates
	res, err := r.db.ExecContext(ctx,
		"UPDATE transfers SET download_count = download_count + 1 WHERE id = ?",
		transferID,
	)
	if err != nil {
		return &entities.PersistenceError{Op: "increment download count", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &entities.PersistenceError{Op: "increment download count", Err: err}
	}
	if affected == 0 {
		return entities.ErrTransferNotFound
	}
	return nil
}

func (r *SQLiteMetadata) FindExpired(ctx context.Context, now time.Time, grace time.Duration) ([]*entities.Transfer, error) {
	cutoff := now.Add(-grace).UTC()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sender_email, receiver_email, message, created_at,
			expires_at, download_count, total_size, file_count
		FROM transfers WHERE expires_at < ? ORDER BY expires_at`, cutoff)
	if err != nil {
		return nil, &entities.PersistenceError{Op: "find expired", Err: err}
	}
	defer rows.Close()

	var transfers []*entities.Transfer
	for rows.Next() {
		var t entities.Transfer
		if err := rows.Scan(&t.ID, &t.SenderEmail, &t.ReceiverEmail, &t.Message,
			&t.CreatedAt, &t.ExpiresAt, &t.DownloadCount, &t.TotalSize, &t.FileCount); err != nil {
			return nil, &entities.PersistenceError{Op: "find expired", Err: err}
		}
		transfers = append(transfers, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, &entities.PersistenceError{Op: "find expired", Err: err}
	}
	return transfers, nil
}

func (r *SQLiteMetadata) DeleteTransfer(ctx context.Context, id string) error {
	// Explicit two-statement transaction so a partial delete can never
	// leave orphaned file rows
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &entities.PersistenceError{Op: "delete transfer", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE transfer_id = ?", id); err != nil {
		return &entities.PersistenceError{Op: "delete files", Err: err}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM transfers WHERE id = ?", id); err != nil {
		return &entities.PersistenceError{Op: "delete transfer", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &entities.PersistenceError{Op: "delete transfer", Err: err}
	}
	return nil
}
