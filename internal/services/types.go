package services

// Image is an image resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// CoverURL returns the first (largest) image URL, or "".
func CoverURL(images []Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

type followers struct {
	Total int `json:"total"`
}

// Owner is the user owning a playlist.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Paging is one page of a paginated listing.
type Paging[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

// HasNext reports whether another page follows.
func (p *Paging[T]) HasNext() bool { return p.Next != nil && *p.Next != "" }

type trackTotal struct {
	Total int `json:"total"`
}

// SimplePlaylist is the playlist object returned by listings and by the playlist endpoint.
type SimplePlaylist struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Owner         Owner      `json:"owner"`
	Public        bool       `json:"public"`
	Collaborative bool       `json:"collaborative"`
	Tracks        trackTotal `json:"tracks"`
	Images        []Image    `json:"images"`
}

// SimpleArtist is an artist credit on a track or album.
type SimpleArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Artist is a full artist profile.
type Artist struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Genres     []string  `json:"genres"`
	Images     []Image   `json:"images"`
	Followers  followers `json:"followers"`
	Popularity int       `json:"popularity"`
}

// FollowerCount returns the artist's follower total.
func (a *Artist) FollowerCount() int { return a.Followers.Total }

// Album is a simplified album.
type Album struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	AlbumType   string         `json:"album_type"`
	ReleaseDate string         `json:"release_date"`
	TotalTracks int            `json:"total_tracks"`
	Images      []Image        `json:"images"`
	Artists     []SimpleArtist `json:"artists"`
}

// Track is a track object. Local files carry an empty ID.
type Track struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Artists    []SimpleArtist `json:"artists"`
	Album      Album          `json:"album"`
	DurationMs int            `json:"duration_ms"`
	IsLocal    bool           `json:"is_local"`
}

// PlaylistItem is one entry of a playlist's track listing. Track is nil for removed or
// unavailable items.
type PlaylistItem struct {
	AddedAt string `json:"added_at"`
	IsLocal bool   `json:"is_local"`
	Track   *Track `json:"track"`
}

type topTracks struct {
	Tracks []Track `json:"tracks"`
}
