package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/mirrorwave/tunesync/internal/models"
)

var _ list.Item = libraryItem{}

// libraryItem wraps one transferable library entry (album or playlist) to
// implement [list.Item].
type libraryItem struct {
	kind       models.ItemKind
	id         string
	name       string
	artist     string
	upc        string
	trackCount int
	artworkURL string
}

func albumItem(album models.Album) libraryItem {
	return libraryItem{
		kind:       models.KindAlbum,
		id:         album.ID,
		name:       album.Name,
		artist:     album.Artist,
		upc:        album.UPC,
		trackCount: album.TrackCount,
		artworkURL: album.ArtworkURL,
	}
}

func playlistItem(playlist models.Playlist) libraryItem {
	return libraryItem{
		kind:       models.KindPlaylist,
		id:         playlist.ID,
		name:       playlist.Name,
		trackCount: playlist.TrackCount,
		artworkURL: playlist.ArtworkURL,
	}
}

func (i libraryItem) FilterValue() string { return i.name }
func (i libraryItem) Title() string       { return i.name }
func (i libraryItem) Description() string {
	desc := string(i.kind)
	if i.artist != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.artist)
	}
	if i.trackCount > 0 {
		desc = fmt.Sprintf("%s • %d tracks", desc, i.trackCount)
	}
	return desc
}
