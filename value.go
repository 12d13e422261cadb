package metacache

import "time"

// Kind identifies a metadata kind and doubles as the tier name.
type Kind string

const (
	// KindTrack is per-track tag metadata read from audio files.
	KindTrack Kind = "track"
	// KindAlbum is album-level metadata aggregated across tracks.
	KindAlbum Kind = "album"
	// KindExternal is metadata fetched from Discogs or MusicBrainz.
	KindExternal Kind = "external"
)

// Value is the union of cacheable metadata payloads. Each tier holds
// values of exactly one kind; the shared store machinery stays generic.
type Value interface {
	MetadataKind() Kind
}

// TrackTags is tag metadata for a single soundtrack file.
type TrackTags struct {
	Path        string
	Title       string
	Artist      string
	Album       string
	Genre       string
	TrackNumber int
	Year        int
	Duration    time.Duration
	HasCover    bool
}

func (TrackTags) MetadataKind() Kind { return KindTrack }

// AlbumInfo is album-level metadata shared by a game's soundtrack.
type AlbumInfo struct {
	Album       string
	AlbumArtist string
	Genre       string
	Year        int
	TrackCount  int
	CoverURL    string
}

func (AlbumInfo) MetadataKind() Kind { return KindAlbum }

// ExternalResult is a lookup result from an external metadata API.
type ExternalResult struct {
	Source    string // "discogs" or "musicbrainz"
	ReleaseID string
	Title     string
	Artist    string
	Year      int
	Genres    []string
	URL       string
	Fields    map[string]string // provider-specific extras
}

func (ExternalResult) MetadataKind() Kind { return KindExternal }
