package protocol

import (
	"encoding/json"
	"fmt"
)

// EventType tags an extra extension event.
type EventType string

// Extra extension events.
const (
	EventRequestedPlaylists       EventType = "requestedPlaylists"
	EventRequestedPlaylistSongs   EventType = "requestedPlaylistSongs"
	EventOauthCallback            EventType = "oauthCallback"
	EventSongQueueChanged         EventType = "songQueueChanged"
	EventSeeked                   EventType = "seeked"
	EventVolumeChanged            EventType = "volumeChanged"
	EventPlayerStateChanged       EventType = "playerStateChanged"
	EventSongChanged              EventType = "songChanged"
	EventPreferenceChanged        EventType = "preferenceChanged"
	EventPlaybackDetailsRequested EventType = "playbackDetailsRequested"
	EventCustomRequest            EventType = "customRequest"
	EventRequestedSongFromURL     EventType = "requestedSongFromURL"
	EventRequestedPlaylistFromURL EventType = "requestedPlaylistFromURL"
	EventRequestedSearchResult    EventType = "requestedSearchResult"
	EventRequestedRecommendations EventType = "requestedRecommendations"
	EventRequestedLyrics          EventType = "requestedLyrics"
	EventRequestedArtistSongs     EventType = "requestedArtistSongs"
	EventRequestedAlbumSongs      EventType = "requestedAlbumSongs"
	EventSongAdded                EventType = "songAdded"
	EventSongRemoved              EventType = "songRemoved"
	EventPlaylistAdded            EventType = "playlistAdded"
	EventPlaylistRemoved          EventType = "playlistRemoved"
	EventRequestedSongFromID      EventType = "requestedSongFromId"
	EventGetRemoteURL             EventType = "getRemoteURL"
	EventScrobble                 EventType = "scrobble"
)

// eventSpec binds an event to the plugin export handling it and the shape of
// its reply.
type eventSpec struct {
	fn    string
	reply func(EventType) ExtraEventResponse
}

var events = map[EventType]eventSpec{
	EventRequestedPlaylists:       {"get_playlists_wrapper", func(EventType) ExtraEventResponse { return &PlaylistsResult{} }},
	EventRequestedPlaylistSongs:   {"get_playlist_content_wrapper", newSongsWithPageToken},
	EventOauthCallback:            {"oauth_callback_wrapper", newAck},
	EventSongQueueChanged:         {"on_queue_changed_wrapper", newAck},
	EventSeeked:                   {"on_seeked_wrapper", newAck},
	EventVolumeChanged:            {"on_volume_changed_wrapper", newAck},
	EventPlayerStateChanged:       {"on_player_state_changed_wrapper", newAck},
	EventSongChanged:              {"on_song_changed_wrapper", newAck},
	EventPreferenceChanged:        {"on_preferences_changed_wrapper", newAck},
	EventPlaybackDetailsRequested: {"get_playback_details_wrapper", func(EventType) ExtraEventResponse { return &PlaybackDetails{} }},
	EventCustomRequest:            {"handle_custom_request_wrapper", func(EventType) ExtraEventResponse { return &CustomRequestResult{} }},
	EventRequestedSongFromURL:     {"get_song_from_url_wrapper", newSongResult},
	EventRequestedPlaylistFromURL: {"get_playlist_from_url_wrapper", func(EventType) ExtraEventResponse { return &PlaylistAndSongs{} }},
	EventRequestedSearchResult:    {"search_wrapper", func(EventType) ExtraEventResponse { return &SearchResult{} }},
	EventRequestedRecommendations: {"get_recommendations_wrapper", func(EventType) ExtraEventResponse { return &Recommendations{} }},
	EventRequestedLyrics:          {"get_lyrics_wrapper", func(EventType) ExtraEventResponse { return &Lyrics{} }},
	EventRequestedArtistSongs:     {"get_artist_songs_wrapper", newSongsWithPageToken},
	EventRequestedAlbumSongs:      {"get_album_songs_wrapper", newSongsWithPageToken},
	EventSongAdded:                {"on_song_added_wrapper", newAck},
	EventSongRemoved:              {"on_song_removed_wrapper", newAck},
	EventPlaylistAdded:            {"on_playlist_added_wrapper", newAck},
	EventPlaylistRemoved:          {"on_playlist_removed_wrapper", newAck},
	EventRequestedSongFromID:      {"get_song_from_id_wrapper", newSongResult},
	EventGetRemoteURL:             {"get_remote_url_wrapper", func(EventType) ExtraEventResponse { return &RemoteURL{} }},
	EventScrobble:                 {"scrobble_wrapper", newAck},
}

// Valid reports whether t is a known event.
func (t EventType) Valid() bool {
	_, ok := events[t]
	return ok
}

// Function returns the plugin export handling t.
func (t EventType) Function() (string, error) {
	spec, ok := events[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, t)
	}
	return spec.fn, nil
}

// Events returns every known event type.
func Events() []EventType {
	out := make([]EventType, 0, len(events))
	for t := range events {
		out = append(out, t)
	}
	return out
}

// DecodeEventResponse parses a plugin reply to event t.
func DecodeEventResponse(t EventType, raw json.RawMessage) (ExtraEventResponse, error) {
	spec, ok := events[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, t)
	}
	resp := spec.reply(t)
	if err := resp.decode(raw); err != nil {
		return nil, fmt.Errorf("decode %s reply: %w", t, err)
	}
	return resp, nil
}

// ExtraEventResponse is the closed set of replies to extra events.
type ExtraEventResponse interface {
	// Event returns the event this reply answers.
	Event() EventType

	decode(raw json.RawMessage) error
	sanitize(prefix string)
}

func newAck(t EventType) ExtraEventResponse { return &Ack{event: t} }

func newSongsWithPageToken(t EventType) ExtraEventResponse {
	return &SongsWithPageToken{event: t}
}

func newSongResult(t EventType) ExtraEventResponse { return &SongResult{event: t} }

// Ack answers events that carry no reply payload.
type Ack struct {
	event EventType
}

// NewAck returns the acknowledgement for event t.
func NewAck(t EventType) *Ack { return &Ack{event: t} }

// Event implements ExtraEventResponse.
func (a *Ack) Event() EventType { return a.event }

// MarshalJSON encodes an acknowledgement as null.
func (a *Ack) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

func (a *Ack) decode(json.RawMessage) error { return nil }
func (a *Ack) sanitize(string)              {}

// PlaylistsResult answers requestedPlaylists.
type PlaylistsResult struct {
	Playlists []Playlist `json:"playlists"`
}

// Event implements ExtraEventResponse.
func (*PlaylistsResult) Event() EventType { return EventRequestedPlaylists }

func (r *PlaylistsResult) decode(raw json.RawMessage) error { return decodeInto(raw, r) }
func (r *PlaylistsResult) sanitize(prefix string)           { sanitizePlaylists(prefix, r.Playlists) }

// SongsWithPageToken answers the paged song listings: playlist, artist and
// album songs.
type SongsWithPageToken struct {
	event         EventType
	Songs         []Song          `json:"songs"`
	NextPageToken json.RawMessage `json:"nextPageToken,omitempty"`
}

// Event implements ExtraEventResponse.
func (r *SongsWithPageToken) Event() EventType { return r.event }

func (r *SongsWithPageToken) decode(raw json.RawMessage) error { return decodeInto(raw, r) }
func (r *SongsWithPageToken) sanitize(prefix string)           { sanitizeSongs(prefix, r.Songs) }

// SongResult answers song lookups by URL or id.
type SongResult struct {
	event EventType
	Song  *Song `json:"song"`
}

// Event implements ExtraEventResponse.
func (r *SongResult) Event() EventType { return r.event }

func (r *SongResult) decode(raw json.RawMessage) error { return decodeInto(raw, r) }

func (r *SongResult) sanitize(prefix string) {
	if r.Song != nil {
		SanitizeSong(prefix, r.Song)
	}
}

// PlaybackDetails answers playbackDetailsRequested.
type PlaybackDetails struct {
	Duration float64 `json:"duration"`
	URL      string  `json:"url"`
}

// Event implements ExtraEventResponse.
func (*PlaybackDetails) Event() EventType { return EventPlaybackDetailsRequested }

func (r *PlaybackDetails) decode(raw json.RawMessage) error { return decodeInto(raw, r) }
func (*PlaybackDetails) sanitize(string)                    {}

// CustomRequestResult answers customRequest.
type CustomRequestResult struct {
	MimeType    string          `json:"mimeType,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	RedirectURL string          `json:"redirectUrl,omitempty"`
}

// Event implements ExtraEventResponse.
func (*CustomRequestResult) Event() EventType { return EventCustomRequest }

func (r *CustomRequestResult) decode(raw json.RawMessage) error { return decodeInto(raw, r) }
func (*CustomRequestResult) sanitize(string)                    {}

// PlaylistAndSongs answers requestedPlaylistFromURL.
type PlaylistAndSongs struct {
	Playlist *Playlist `json:"playlist"`
	Songs    []Song    `json:"songs"`
}

// Event implements ExtraEventResponse.
func (*PlaylistAndSongs) Event() EventType { return EventRequestedPlaylistFromURL }

func (r *PlaylistAndSongs) decode(raw json.RawMessage) error { return decodeInto(raw, r) }

func (r *PlaylistAndSongs) sanitize(prefix string) {
	if r.Playlist != nil {
		SanitizePlaylist(prefix, r.Playlist)
	}
	sanitizeSongs(prefix, r.Songs)
}

// SearchResult answers requestedSearchResult.
type SearchResult struct {
	Songs     []Song     `json:"songs"`
	Albums    []Album    `json:"albums"`
	Artists   []Artist   `json:"artists"`
	Playlists []Playlist `json:"playlists"`
}

// Event implements ExtraEventResponse.
func (*SearchResult) Event() EventType { return EventRequestedSearchResult }

func (r *SearchResult) decode(raw json.RawMessage) error { return decodeInto(raw, r) }

func (r *SearchResult) sanitize(prefix string) {
	sanitizeSongs(prefix, r.Songs)
	for i := range r.Albums {
		SanitizeAlbum(prefix, &r.Albums[i])
	}
	for i := range r.Artists {
		SanitizeArtist(prefix, &r.Artists[i])
	}
	sanitizePlaylists(prefix, r.Playlists)
}

// Recommendations answers requestedRecommendations.
type Recommendations struct {
	Songs []Song `json:"songs"`
}

// Event implements ExtraEventResponse.
func (*Recommendations) Event() EventType { return EventRequestedRecommendations }

func (r *Recommendations) decode(raw json.RawMessage) error { return decodeInto(raw, r) }
func (r *Recommendations) sanitize(prefix string)           { sanitizeSongs(prefix, r.Songs) }

// Lyrics answers requestedLyrics. Lyrics carry no identifiers.
type Lyrics struct {
	Text string
}

// Event implements ExtraEventResponse.
func (*Lyrics) Event() EventType { return EventRequestedLyrics }

// MarshalJSON encodes the lyrics as a bare string.
func (r *Lyrics) MarshalJSON() ([]byte, error) { return json.Marshal(r.Text) }

func (r *Lyrics) decode(raw json.RawMessage) error { return decodeInto(raw, &r.Text) }
func (*Lyrics) sanitize(string)                    {}

// RemoteURL answers getRemoteURL.
type RemoteURL struct {
	URL string
}

// Event implements ExtraEventResponse.
func (*RemoteURL) Event() EventType { return EventGetRemoteURL }

// MarshalJSON encodes the URL as a bare string.
func (r *RemoteURL) MarshalJSON() ([]byte, error) { return json.Marshal(r.URL) }

func (r *RemoteURL) decode(raw json.RawMessage) error { return decodeInto(raw, &r.URL) }
func (*RemoteURL) sanitize(string)                    {}
