package vfs

import (
	"strings"
	"time"
)

// Message is the storage facade's view of a single stored message.
type Message struct {
	ID           int       `json:"id"`
	Caption      string    `json:"caption"`
	Size         int64     `json:"size"`
	Date         time.Time `json:"date"`
	HasMedia     bool      `json:"hasMedia"`
	HasThumbnail bool      `json:"hasThumbnail"`
}

// Record is a directory listing entry as shown to clients.
type Record struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Size         int64     `json:"size"`
	Date         time.Time `json:"date"`
	HasThumbnail bool      `json:"hasThumbnail"`
	Caption      string    `json:"caption"`
}

// Listing is one page of a reconstructed directory.
type Listing struct {
	Records []Record
	// NextOffsetID is the ID of the last raw message of the page, whether or
	// not it matched. Zero when the page was empty.
	NextOffsetID int
}

// List returns the direct children of dir found in page. The page is
// expected newest first, as returned by the storage facade.
func (c Codec) List(page []Message, dir Path) Listing {
	dir = CleanDir(dir)
	out := Listing{Records: []Record{}}
	for _, m := range page {
		rec, ok := c.record(m, dir)
		if ok {
			out.Records = append(out.Records, rec)
		}
	}
	if len(page) > 0 {
		out.NextOffsetID = page[len(page)-1].ID
	}
	return out
}

// List reconstructs dir from page using DefaultCodec.
func List(page []Message, dir Path) Listing {
	return DefaultCodec.List(page, dir)
}

func (c Codec) record(m Message, dir Path) (Record, bool) {
	if !m.HasMedia {
		return Record{}, false
	}
	d, ok := c.Decode(m.Caption)
	if !ok {
		return Record{}, false
	}
	name, ok := childName(d.Path, dir)
	if !ok {
		return Record{}, false
	}
	if d.Kind == KindDirectory {
		name += "/"
	}
	return Record{
		ID:           m.ID,
		Name:         name,
		Type:         d.Kind.String(),
		Size:         m.Size,
		Date:         m.Date,
		HasThumbnail: m.HasThumbnail,
		Caption:      m.Caption,
	}, true
}

// childName reports whether p sits directly inside dir and returns its last
// segment. The comparison is anchored on whole segments, so "/foobar/x" is
// never a child of "/foo".
func childName(p, dir Path) (string, bool) {
	prefix := string(dir)
	if prefix != "/" {
		prefix += "/"
	}
	rest, ok := strings.CutPrefix(string(p), prefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// TotalSize sums the sizes of every non-foreign media message in page.
func (c Codec) TotalSize(page []Message) int64 {
	var total int64
	for _, m := range page {
		if !m.HasMedia {
			continue
		}
		if _, ok := c.Decode(m.Caption); ok {
			total += m.Size
		}
	}
	return total
}
