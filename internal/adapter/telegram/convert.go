package telegram

import (
	"time"

	"github.com/gotd/td/tg"

	"github.com/jun/teledrive/internal/adapter"
	"github.com/jun/teledrive/internal/vfs"
)

// thumb identifies a downloadable thumbnail size. Cached sizes carry
// their bytes inline and need no download.
type thumb struct {
	Type   string
	Cached []byte
}

// pickThumb chooses the smallest JPEG thumbnail among sizes. Stripped and
// vector sizes are not JPEG files and are skipped.
func pickThumb(sizes []tg.PhotoSizeClass) (thumb, bool) {
	var (
		best     thumb
		bestArea = -1
	)
	consider := func(t thumb, area int) {
		if bestArea < 0 || area < bestArea {
			best, bestArea = t, area
		}
	}
	for _, s := range sizes {
		switch v := s.(type) {
		case *tg.PhotoSize:
			consider(thumb{Type: v.Type}, v.W*v.H)
		case *tg.PhotoSizeProgressive:
			consider(thumb{Type: v.Type}, v.W*v.H)
		case *tg.PhotoCachedSize:
			consider(thumb{Type: v.Type, Cached: v.Bytes}, v.W*v.H)
		}
	}
	return best, bestArea >= 0
}

// largestSize returns the type of the largest downloadable photo size.
func largestSize(sizes []tg.PhotoSizeClass) (string, bool) {
	var (
		best     string
		bestArea = -1
	)
	for _, s := range sizes {
		var typ string
		var area int
		switch v := s.(type) {
		case *tg.PhotoSize:
			typ, area = v.Type, v.W*v.H
		case *tg.PhotoSizeProgressive:
			typ, area = v.Type, v.W*v.H
		default:
			continue
		}
		if area > bestArea {
			best, bestArea = typ, area
		}
	}
	return best, bestArea >= 0
}

// photoSize returns the byte size of the largest photo size.
func photoSize(sizes []tg.PhotoSizeClass) int64 {
	var max int64
	for _, s := range sizes {
		var n int64
		switch v := s.(type) {
		case *tg.PhotoSize:
			n = int64(v.Size)
		case *tg.PhotoSizeProgressive:
			if len(v.Sizes) > 0 {
				n = int64(v.Sizes[len(v.Sizes)-1])
			}
		case *tg.PhotoCachedSize:
			n = int64(len(v.Bytes))
		}
		if n > max {
			max = n
		}
	}
	return max
}

// convert maps a history entry to the facade's message view. Service and
// empty messages keep their ID so pagination can step over them.
func convert(m tg.MessageClass) vfs.Message {
	switch v := m.(type) {
	case *tg.Message:
		out := vfs.Message{
			ID:      v.ID,
			Caption: v.Message,
			Date:    time.Unix(int64(v.Date), 0).UTC(),
		}
		media, ok := v.GetMedia()
		if !ok {
			return out
		}
		switch md := media.(type) {
		case *tg.MessageMediaDocument:
			if doc, ok := md.Document.(*tg.Document); ok {
				out.HasMedia = true
				out.Size = doc.Size
				_, out.HasThumbnail = pickThumb(doc.Thumbs)
			}
		case *tg.MessageMediaPhoto:
			if photo, ok := md.Photo.(*tg.Photo); ok {
				out.HasMedia = true
				out.Size = photoSize(photo.Sizes)
				_, out.HasThumbnail = pickThumb(photo.Sizes)
			}
		}
		return out
	case *tg.MessageService:
		return vfs.Message{ID: v.ID, Date: time.Unix(int64(v.Date), 0).UTC()}
	case *tg.MessageEmpty:
		return vfs.Message{ID: v.ID}
	}
	return vfs.Message{}
}

func historyMessages(res tg.MessagesMessagesClass) []tg.MessageClass {
	switch r := res.(type) {
	case *tg.MessagesMessages:
		return r.Messages
	case *tg.MessagesMessagesSlice:
		return r.Messages
	case *tg.MessagesChannelMessages:
		return r.Messages
	}
	return nil
}

// historyPage converts a getHistory response. A complete response
// (MessagesMessages) never has more; a slice has more while it is full.
func historyPage(res tg.MessagesMessagesClass, limit int) adapter.Page {
	msgs := historyMessages(res)
	page := adapter.Page{Messages: make([]vfs.Message, 0, len(msgs))}
	for _, m := range msgs {
		page.Messages = append(page.Messages, convert(m))
	}
	if _, complete := res.(*tg.MessagesMessages); !complete {
		page.HasMore = len(msgs) > 0 && len(msgs) >= limit
	}
	return page
}

// findMessage returns the *tg.Message with id from a getMessages response.
func findMessage(res tg.MessagesMessagesClass, id int) (*tg.Message, bool) {
	for _, m := range historyMessages(res) {
		if msg, ok := m.(*tg.Message); ok && msg.ID == id {
			return msg, true
		}
	}
	return nil, false
}

// sentMessage extracts the new message from a sendMedia response. When the
// server only reports the ID, the message is returned with just that set.
func sentMessage(u tg.UpdatesClass) (*tg.Message, bool) {
	var id int
	switch v := u.(type) {
	case *tg.Updates:
		for _, up := range v.Updates {
			switch x := up.(type) {
			case *tg.UpdateNewMessage:
				if msg, ok := x.Message.(*tg.Message); ok {
					return msg, true
				}
			case *tg.UpdateMessageID:
				id = x.ID
			}
		}
	case *tg.UpdatesCombined:
		for _, up := range v.Updates {
			if x, ok := up.(*tg.UpdateNewMessage); ok {
				if msg, ok := x.Message.(*tg.Message); ok {
					return msg, true
				}
			}
		}
	case *tg.UpdateShortSentMessage:
		return &tg.Message{ID: v.ID, Date: v.Date}, true
	}
	if id != 0 {
		return &tg.Message{ID: id}, true
	}
	return nil, false
}
