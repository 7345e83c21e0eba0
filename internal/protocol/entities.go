package protocol

import "encoding/json"

// Artist is an artist entity as reported by an extension.
type Artist struct {
	ID        string          `json:"artist_id"`
	Name      string          `json:"artist_name,omitempty"`
	CoverPath string          `json:"artist_coverPath,omitempty"`
	ExtraInfo json.RawMessage `json:"artist_extra_info,omitempty"`
}

// Album is an album entity as reported by an extension.
type Album struct {
	ID            string          `json:"album_id"`
	Name          string          `json:"album_name,omitempty"`
	Artist        string          `json:"album_artist,omitempty"`
	CoverPathHigh string          `json:"album_coverPath_high,omitempty"`
	CoverPathLow  string          `json:"album_coverPath_low,omitempty"`
	Year          int             `json:"year,omitempty"`
	ExtraInfo     json.RawMessage `json:"album_extra_info,omitempty"`
}

// Song is a playable track.
type Song struct {
	ID                string   `json:"_id"`
	Title             string   `json:"title"`
	Duration          float64  `json:"duration,omitempty"`
	PlaybackURL       string   `json:"playbackUrl,omitempty"`
	URL               string   `json:"url,omitempty"`
	Type              string   `json:"type,omitempty"`
	ProviderExtension string   `json:"providerExtension,omitempty"`
	SongCoverPathHigh string   `json:"song_coverPath_high,omitempty"`
	SongCoverPathLow  string   `json:"song_coverPath_low,omitempty"`
	Album             *Album   `json:"album,omitempty"`
	Artists           []Artist `json:"artists,omitempty"`
	Genre             []string `json:"genre,omitempty"`
}

// Playlist is a playlist entity as reported by an extension.
type Playlist struct {
	ID        string `json:"playlist_id"`
	Name      string `json:"playlist_name"`
	CoverPath string `json:"playlist_coverPath,omitempty"`
	SongCount int    `json:"playlist_song_count,omitempty"`
	Desc      string `json:"playlist_desc,omitempty"`
	Path      string `json:"playlist_path,omitempty"`
	Extension string `json:"extension,omitempty"`
	Icon      string `json:"icon,omitempty"`
}

// Account is a provider account exposed by an extension.
type Account struct {
	ID          string `json:"id"`
	PackageName string `json:"packageName"`
	Name        string `json:"name"`
	BgColor     string `json:"bgColor,omitempty"`
	Icon        string `json:"icon,omitempty"`
	LoggedIn    bool   `json:"loggedIn"`
	Username    string `json:"username,omitempty"`
}

// ContextMenuItem is an entry an extension contributes to a context menu.
type ContextMenuItem struct {
	Type     string `json:"type"`
	Label    string `json:"label"`
	ActionID string `json:"action_id"`
}

// ProviderScope names a capability an extension provides.
type ProviderScope string

// Known provider scopes.
const (
	ScopeSearch          ProviderScope = "search"
	ScopePlaylists       ProviderScope = "playlists"
	ScopePlaylistSongs   ProviderScope = "playlistSongs"
	ScopeArtistSongs     ProviderScope = "artistSongs"
	ScopeAlbumSongs      ProviderScope = "albumSongs"
	ScopeRecommendations ProviderScope = "recommendations"
	ScopeScrobbles       ProviderScope = "scrobbles"
	ScopePlaylistFromURL ProviderScope = "playlistFromUrl"
	ScopeSongFromURL     ProviderScope = "songFromUrl"
	ScopeSearchAlbum     ProviderScope = "searchAlbum"
	ScopeSearchArtist    ProviderScope = "searchArtist"
	ScopePlaybackDetails ProviderScope = "playbackDetails"
	ScopeLyrics          ProviderScope = "lyrics"
	ScopeSongContextMenu ProviderScope = "songContextMenu"
	ScopeAccounts        ProviderScope = "accounts"
)

// The sanitize helpers prepend prefix unconditionally, empty identifiers
// included ("" becomes "pkg:"). Running them twice yields a doubled prefix
// ("pkg:pkg:id"); this matches the behaviour callers have relied on so far
// and is likely unintended.

func prefixID(prefix string, id *string) {
	*id = prefix + *id
}

// SanitizeArtist namespaces an artist identifier.
func SanitizeArtist(prefix string, a *Artist) {
	prefixID(prefix, &a.ID)
}

// SanitizeAlbum namespaces an album identifier.
func SanitizeAlbum(prefix string, a *Album) {
	prefixID(prefix, &a.ID)
}

// SanitizePlaylist namespaces a playlist identifier.
func SanitizePlaylist(prefix string, p *Playlist) {
	prefixID(prefix, &p.ID)
}

// SanitizeSong namespaces a song identifier along with its album and artists.
func SanitizeSong(prefix string, s *Song) {
	prefixID(prefix, &s.ID)
	if s.Album != nil {
		SanitizeAlbum(prefix, s.Album)
	}
	for i := range s.Artists {
		SanitizeArtist(prefix, &s.Artists[i])
	}
}

func sanitizeSongs(prefix string, songs []Song) {
	for i := range songs {
		SanitizeSong(prefix, &songs[i])
	}
}

func sanitizePlaylists(prefix string, playlists []Playlist) {
	for i := range playlists {
		SanitizePlaylist(prefix, &playlists[i])
	}
}
