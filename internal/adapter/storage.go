package adapter

import (
	"context"
	"io"

	"github.com/jun/teledrive/internal/vfs"
)

// Page is one batch of message history, newest first.
type Page struct {
	Messages []vfs.Message
	HasMore  bool
}

// StorageAdapter is the storage facade: the messaging account seen as a flat
// list of captioned attachments.
// Implementations hold no state between calls beyond the session they were
// built with.
type StorageAdapter interface {
	// ListMessages returns up to limit messages older than offsetID.
	// An offsetID of zero starts from the newest message.
	ListMessages(ctx context.Context, offsetID, limit int) (Page, error)

	// GetMessage returns a single message by ID.
	GetMessage(ctx context.Context, id int) (*vfs.Message, error)

	// SendFile uploads the file at localPath as an attachment with caption.
	SendFile(ctx context.Context, localPath, fileName, caption string) (*vfs.Message, error)

	// DeleteMessage deletes a message by ID.
	DeleteMessage(ctx context.Context, id int) error

	// EditCaption replaces the caption of a message.
	EditCaption(ctx context.Context, id int, caption string) error

	// DownloadFile writes the full attachment of a message to w.
	DownloadFile(ctx context.Context, id int, w io.Writer) error

	// DownloadThumbnail writes the message's JPEG thumbnail to w.
	DownloadThumbnail(ctx context.Context, id int, w io.Writer) error
}
