package render

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"video-catalog/pkg/models"
)

const placeholderPoster = "/static/img/logo-full.svg"

// ShowCard is the tile of a show in a grid or row.
type ShowCard struct {
	ID       string
	Name     string
	Studio   string
	Logo     string
	Banner   string
	Poster   string
	URL      string
	Seasons  int
	Episodes int
	Latest   time.Time
}

// EpisodeCard is the tile of an episode together with where it lives.
type EpisodeCard struct {
	models.Episode
	ShowID   string
	ShowName string
	Studio   string
	Season   string
	URL      string
}

// Chip is a studio filter button.
type Chip struct {
	Name   string
	Logo   string
	URL    string
	Active bool
}

// ShowURL returns the show page link of a show id.
func ShowURL(id string) string {
	return "/show?show=" + url.QueryEscape(id)
}

// WatchURL returns the watch page link of an episode id.
func WatchURL(id string) string {
	return "/watch?vid=" + url.QueryEscape(id)
}

// DeriveShows builds one card per show, most episodes first.
func DeriveShows(cat *models.Catalog) []ShowCard {
	cards := make([]ShowCard, 0)
	for _, studio := range cat.Studios {
		for _, show := range studio.Shows {
			cards = append(cards, newShowCard(studio.Name, show))
		}
	}
	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].Episodes != cards[j].Episodes {
			return cards[i].Episodes > cards[j].Episodes
		}
		return strings.ToLower(cards[i].Name) < strings.ToLower(cards[j].Name)
	})
	return cards
}

func newShowCard(studio string, show models.Show) ShowCard {
	card := ShowCard{
		ID:       show.ID,
		Name:     show.Name,
		Studio:   studio,
		Logo:     show.Logo,
		Banner:   show.Banner,
		URL:      ShowURL(show.ID),
		Seasons:  len(show.Seasons),
		Episodes: show.EpisodeCount(),
	}
	for _, season := range show.Seasons {
		for _, ep := range season.Episodes {
			if card.Poster == "" && ep.Thumb != "" {
				card.Poster = ep.Thumb
			}
			if ep.Modified.After(card.Latest) {
				card.Latest = ep.Modified
			}
		}
	}
	switch {
	case show.Logo != "":
		card.Poster = show.Logo
	case card.Poster == "":
		card.Poster = placeholderPoster
	}
	return card
}

// Latest returns up to n cards ordered by their newest episode.
func Latest(cards []ShowCard, n int) []ShowCard {
	out := append([]ShowCard(nil), cards...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Latest.After(out[j].Latest) })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Filter keeps the cards whose show name or studio name contains q,
// ignoring case. An empty q keeps everything.
func Filter(cards []ShowCard, q string) []ShowCard {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]ShowCard, 0, len(cards))
	for _, c := range cards {
		if q == "" || strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.Studio), q) {
			out = append(out, c)
		}
	}
	return out
}

// FilterStudios keeps the cards of the given studios. No studios keeps everything.
func FilterStudios(cards []ShowCard, studios []string) []ShowCard {
	if len(studios) == 0 {
		return cards
	}
	want := make(map[string]bool, len(studios))
	for _, s := range studios {
		want[s] = true
	}
	out := make([]ShowCard, 0, len(cards))
	for _, c := range cards {
		if want[c.Studio] {
			out = append(out, c)
		}
	}
	return out
}

// StudioChips returns an "All" chip followed by one chip per studio.
// base is the page path the chips link to.
func StudioChips(cat *models.Catalog, base string, active []string) []Chip {
	on := make(map[string]bool, len(active))
	for _, a := range active {
		on[a] = true
	}
	chips := []Chip{{Name: "All", URL: base, Active: len(active) == 0}}
	for _, studio := range cat.Studios {
		chips = append(chips, Chip{
			Name:   studio.Name,
			Logo:   studio.Logo,
			URL:    base + "?studio=" + url.QueryEscape(studio.Name),
			Active: on[studio.Name],
		})
	}
	return chips
}

// Episodes lists every episode of the catalog in catalog order.
func Episodes(cat *models.Catalog) []EpisodeCard {
	out := make([]EpisodeCard, 0, len(cat.Videos))
	for _, studio := range cat.Studios {
		for _, show := range studio.Shows {
			for _, season := range show.Seasons {
				out = append(out, episodeCards(studio.Name, show, season)...)
			}
		}
	}
	return out
}

func episodeCards(studio string, show models.Show, season models.Season) []EpisodeCard {
	out := make([]EpisodeCard, 0, len(season.Episodes))
	for _, ep := range season.Episodes {
		out = append(out, EpisodeCard{
			Episode:  ep,
			ShowID:   show.ID,
			ShowName: show.Name,
			Studio:   studio,
			Season:   season.Name,
			URL:      WatchURL(ep.ID),
		})
	}
	return out
}

// FilterEpisodes keeps the episodes whose name, show or studio contains q.
func FilterEpisodes(eps []EpisodeCard, q string) []EpisodeCard {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return eps
	}
	out := make([]EpisodeCard, 0, len(eps))
	for _, e := range eps {
		if strings.Contains(strings.ToLower(e.Name), q) ||
			strings.Contains(strings.ToLower(e.ShowName), q) ||
			strings.Contains(strings.ToLower(e.Studio), q) {
			out = append(out, e)
		}
	}
	return out
}

// locateEpisode finds the episode card of an episode id.
func locateEpisode(cat *models.Catalog, id string) (EpisodeCard, bool) {
	for _, e := range Episodes(cat) {
		if e.ID == id {
			return e, true
		}
	}
	return EpisodeCard{}, false
}
