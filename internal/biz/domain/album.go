package domain

import (
	"fmt"
	"sort"
)

// AlbumKey identifies an album. Group ids are only trusted within one chat.
type AlbumKey struct {
	ChatID  int64
	GroupID string
}

// String returns a printable form of the key
func (k AlbumKey) String() string {
	return fmt.Sprintf("%d/%s", k.ChatID, k.GroupID)
}

// KeyOf returns the album key of a grouped message
func KeyOf(msg *InboundMessage) AlbumKey {
	return AlbumKey{ChatID: msg.ChatID, GroupID: msg.GroupID}
}

// Album is a settled set of messages sharing one group identifier
type Album struct {
	Key      AlbumKey
	BatchID  string
	Messages []*InboundMessage // ascending by ID
}

// NewAlbum builds a settled album, sorting messages by ID ascending
func NewAlbum(key AlbumKey, batchID string, messages []*InboundMessage) *Album {
	sorted := make([]*InboundMessage, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})
	return &Album{Key: key, BatchID: batchID, Messages: sorted}
}

// Representative returns the first message carrying text, or the first
// message when none do. Returns nil for an empty album.
func (a *Album) Representative() *InboundMessage {
	if len(a.Messages) == 0 {
		return nil
	}
	for _, m := range a.Messages {
		if m.Text != "" {
			return m
		}
	}
	return a.Messages[0]
}

// IDs returns the message ids in album order
func (a *Album) IDs() []int {
	ids := make([]int, 0, len(a.Messages))
	for _, m := range a.Messages {
		ids = append(ids, m.ID)
	}
	return ids
}
