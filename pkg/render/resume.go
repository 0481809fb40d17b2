package render

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	resumeCookiePrefix = "cw_"
	resumeMaxAge       = 180 * 24 * time.Hour
)

// Position is where a viewer stopped watching a show.
type Position struct {
	Show    string    `json:"show"`
	Episode string    `json:"episode"`
	Seconds float64   `json:"seconds"`
	Updated time.Time `json:"updated"`
}

// ResumeStore keeps continue-watching positions in client cookies, one cookie
// per show. The cookie name is derived from a hash of the show id.
type ResumeStore struct {
	positions map[string]Position
	changed   map[string]bool
}

// NewResumeStore decodes the positions found in cookies. Cookies that do not
// decode are ignored.
func NewResumeStore(cookies []*http.Cookie) *ResumeStore {
	s := &ResumeStore{positions: make(map[string]Position), changed: make(map[string]bool)}
	for _, c := range cookies {
		if !strings.HasPrefix(c.Name, resumeCookiePrefix) {
			continue
		}
		pos, ok := decodePosition(c.Value)
		if !ok || ResumeKey(pos.Show) != c.Name {
			continue
		}
		s.positions[pos.Show] = pos
	}
	return s
}

// ResumeFromRequest reads the positions sent with r.
func ResumeFromRequest(r *http.Request) *ResumeStore {
	return NewResumeStore(r.Cookies())
}

// ResumeKey returns the cookie name used for a show.
func ResumeKey(showID string) string {
	sum := sha256.Sum256([]byte(showID))
	return resumeCookiePrefix + base64.RawURLEncoding.EncodeToString(sum[:])[:16]
}

// Get returns the saved position of a show.
func (s *ResumeStore) Get(showID string) (Position, bool) {
	pos, ok := s.positions[showID]
	return pos, ok
}

// Set records a position. Save must be called to send it to the client.
func (s *ResumeStore) Set(pos Position) {
	if pos.Updated.IsZero() {
		pos.Updated = time.Now().UTC()
	}
	if pos.Seconds < 0 {
		pos.Seconds = 0
	}
	s.positions[pos.Show] = pos
	s.changed[pos.Show] = true
}

// Recent returns up to limit positions, most recently updated first.
func (s *ResumeStore) Recent(limit int) []Position {
	out := make([]Position, 0, len(s.positions))
	for _, pos := range s.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Updated.Equal(out[j].Updated) {
			return out[i].Updated.After(out[j].Updated)
		}
		return out[i].Show < out[j].Show
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Save writes a cookie for every position changed since the store was read.
func (s *ResumeStore) Save(w http.ResponseWriter) {
	for show := range s.changed {
		data, err := json.Marshal(s.positions[show])
		if err != nil {
			continue
		}
		http.SetCookie(w, &http.Cookie{
			Name:     ResumeKey(show),
			Value:    base64.RawURLEncoding.EncodeToString(data),
			Path:     "/",
			MaxAge:   int(resumeMaxAge.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	s.changed = make(map[string]bool)
}

func decodePosition(value string) (Position, bool) {
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return Position{}, false
	}
	var pos Position
	if err := json.Unmarshal(data, &pos); err != nil || pos.Show == "" {
		return Position{}, false
	}
	return pos, true
}
