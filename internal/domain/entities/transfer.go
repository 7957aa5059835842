package entities

import (
	"time"
)

// Transfer represents a batch of files uploaded together and shared
// through a single identifier until it expires
type Transfer struct {
	ID            string
	SenderEmail   string
	ReceiverEmail string
	Message       string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	DownloadCount int64
	TotalSize     int64
	FileCount     int
}

// Expired reports whether the transfer is past its retention window
func (t *Transfer) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// File represents a single file within a transfer. Files are created
// together with their transfer and never mutated afterwards.
type File struct {
	ID           string
	TransferID   string
	OriginalName string
	SavedName    string
	Size         int64
	MimeType     string
	UploadedAt   time.Time
}
