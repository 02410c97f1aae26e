package domain

import (
	"reflect"
	"testing"
)

func TestNewAlbum_SortsByID(t *testing.T) {
	key := AlbumKey{ChatID: 1, GroupID: "g"}
	album := NewAlbum(key, "batch", []*InboundMessage{
		{ID: 12}, {ID: 10}, {ID: 11},
	})

	if got := album.IDs(); !reflect.DeepEqual(got, []int{10, 11, 12}) {
		t.Errorf("Expected ids [10 11 12], got %v", got)
	}
}

func TestAlbum_Representative_FirstWithText(t *testing.T) {
	album := NewAlbum(AlbumKey{}, "", []*InboundMessage{
		{ID: 3, Text: "third"},
		{ID: 1},
		{ID: 2, Text: "second"},
	})

	rep := album.Representative()
	if rep == nil || rep.ID != 2 {
		t.Fatalf("Expected representative id 2, got %+v", rep)
	}
}

func TestAlbum_Representative_NoText(t *testing.T) {
	album := NewAlbum(AlbumKey{}, "", []*InboundMessage{{ID: 5}, {ID: 4}})

	rep := album.Representative()
	if rep == nil || rep.ID != 4 {
		t.Fatalf("Expected first message by id, got %+v", rep)
	}
}

func TestAlbum_Representative_Empty(t *testing.T) {
	album := NewAlbum(AlbumKey{}, "", nil)
	if album.Representative() != nil {
		t.Error("Expected nil representative for empty album")
	}
}
