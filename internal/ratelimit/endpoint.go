package ratelimit

import (
	"strings"
)

// Class groups endpoints that share a spacing interval.
type Class int

const (
	General Class = iota
	HighVolume
)

func (c Class) String() string {
	switch c {
	case HighVolume:
		return "high_volume"
	default:
		return "general"
	}
}

// collections whose following path segment is a resource id.
var collections = map[string]bool{
	"playlists": true,
	"artists":   true,
	"albums":    true,
	"tracks":    true,
	"users":     true,
}

// EndpointKey reduces a request path to its endpoint template.
//
// "/playlists/p1/tracks?offset=100" and "/playlists/p2/tracks" both become "/playlists/{id}/tracks",
// so one subject paging several playlists shares a single limiter.
func EndpointKey(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := 1; i < len(segments); i++ {
		if collections[segments[i-1]] && segments[i] != "" {
			segments[i] = "{id}"
			i++
		}
	}
	return "/" + strings.Join(segments, "/")
}

// Classify returns the class of an endpoint key or raw path.
//
// Track listings, artist top tracks and artist albums are paged heavily during a full sync
// and are treated as high volume.
func Classify(endpoint string) Class {
	switch EndpointKey(endpoint) {
	case "/playlists/{id}/tracks", "/artists/{id}/top-tracks", "/artists/{id}/albums":
		return HighVolume
	default:
		return General
	}
}
