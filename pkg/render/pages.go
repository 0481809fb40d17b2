package render

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"video-catalog/pkg/errs"
	"video-catalog/pkg/models"
)

const (
	heroSize      = 5
	latestSize    = 12
	suggestedSize = 10
	upNextSize    = 10
	continueSize  = 12
)

// HomeData feeds the home template.
type HomeData struct {
	Hero     []ShowCard
	Continue []ContinueCard
	Latest   []ShowCard
	All      []ShowCard
	Chips    []Chip
	Query    string
}

// ContinueCard links to the saved position of a show.
type ContinueCard struct {
	Show    ShowCard
	Episode EpisodeCard
	Seconds float64
	URL     string
}

// BrowseData feeds the browse template.
type BrowseData struct {
	Episodes []EpisodeCard
	Chips    []Chip
	Query    string
}

// LibraryData feeds the library template.
type LibraryData struct {
	Shows   []ShowCard
	Filters []Chip
	Query   string
}

// SeasonTab is one entry of the season picker.
type SeasonTab struct {
	Name   string
	URL    string
	Active bool
}

// ShowData feeds the show template.
type ShowData struct {
	Show        ShowCard
	Seasons     []SeasonTab
	Season      string
	Episodes    []EpisodeCard
	ContinueURL string
	RestartURL  string
	Resume      *Position
	Suggested   []ShowCard
}

// WatchData feeds the watch template.
type WatchData struct {
	Episode EpisodeCard
	Show    ShowCard
	Start   float64
	UpNext  []EpisodeCard
}

// Home renders the landing page: a hero, continue watching, the latest row
// and every show filtered by ?q and ?studio.
func Home(ctx *Context) (*View, error) {
	cards := DeriveShows(ctx.Catalog)
	q := ctx.Query.Get("q")
	studios := ctx.Query["studio"]

	latest := Latest(cards, latestSize)
	hero := latest
	if len(hero) > heroSize {
		hero = hero[:heroSize]
	}

	return &View{
		Title: "Home",
		Data: HomeData{
			Hero:     hero,
			Continue: continueWatching(ctx),
			Latest:   latest,
			All:      Filter(FilterStudios(cards, studios), q),
			Chips:    StudioChips(ctx.Catalog, "/", studios),
			Query:    q,
		},
	}, nil
}

func continueWatching(ctx *Context) []ContinueCard {
	out := make([]ContinueCard, 0)
	for _, pos := range ctx.Resume.Recent(continueSize) {
		studio, show, ok := ctx.Catalog.Locate(pos.Show)
		if !ok {
			continue
		}
		ep, ok := locateEpisode(ctx.Catalog, pos.Episode)
		if !ok || ep.ShowID != show.ID {
			continue
		}
		out = append(out, ContinueCard{
			Show:    newShowCard(studio.Name, show),
			Episode: ep,
			Seconds: pos.Seconds,
			URL:     resumeURL(ep.ID, pos.Seconds),
		})
	}
	return out
}

// Browse renders every episode, filtered by ?q and ?studio.
func Browse(ctx *Context) (*View, error) {
	q := ctx.Query.Get("q")
	studios := ctx.Query["studio"]

	eps := Episodes(ctx.Catalog)
	if len(studios) > 0 {
		want := make(map[string]bool, len(studios))
		for _, s := range studios {
			want[s] = true
		}
		kept := make([]EpisodeCard, 0, len(eps))
		for _, e := range eps {
			if want[e.Studio] {
				kept = append(kept, e)
			}
		}
		eps = kept
	}

	return &View{
		Title: "Browse",
		Data: BrowseData{
			Episodes: FilterEpisodes(eps, q),
			Chips:    StudioChips(ctx.Catalog, "/browse", studios),
			Query:    q,
		},
	}, nil
}

// Library renders the show grid with multi-select studio filters.
func Library(ctx *Context) (*View, error) {
	q := ctx.Query.Get("q")
	active := ctx.Query["studio"]

	return &View{
		Title: "Library",
		Data: LibraryData{
			Shows:   Filter(FilterStudios(DeriveShows(ctx.Catalog), active), q),
			Filters: libraryFilters(ctx.Catalog, active, q),
			Query:   q,
		},
	}, nil
}

// libraryFilters returns one toggle per studio. Each link flips its studio
// in the current selection.
func libraryFilters(cat *models.Catalog, active []string, q string) []Chip {
	on := make(map[string]bool, len(active))
	for _, a := range active {
		on[a] = true
	}
	chips := make([]Chip, 0, len(cat.Studios))
	for _, studio := range cat.Studios {
		v := url.Values{}
		for _, a := range active {
			if a != studio.Name {
				v.Add("studio", a)
			}
		}
		if !on[studio.Name] {
			v.Add("studio", studio.Name)
		}
		if q != "" {
			v.Set("q", q)
		}
		link := "/library"
		if enc := v.Encode(); enc != "" {
			link += "?" + enc
		}
		chips = append(chips, Chip{Name: studio.Name, Logo: studio.Logo, URL: link, Active: on[studio.Name]})
	}
	return chips
}

// ShowPage renders one show picked by ?show, scoped to the season named by
// ?season (the first season otherwise).
func ShowPage(ctx *Context) (*View, error) {
	id := ctx.Query.Get("show")
	if id == "" {
		return nil, errs.NotFound("show", "")
	}
	studio, show, ok := ctx.Catalog.Locate(id)
	if !ok {
		return nil, errs.NotFound("show", id)
	}

	selected := 0
	if want := ctx.Query.Get("season"); want != "" {
		for i, season := range show.Seasons {
			if strings.EqualFold(season.Name, want) || season.ID == want {
				selected = i
				break
			}
		}
	}

	data := ShowData{
		Show:      newShowCard(studio.Name, show),
		Seasons:   make([]SeasonTab, 0, len(show.Seasons)),
		Episodes:  []EpisodeCard{},
		Suggested: make([]ShowCard, 0),
	}
	for i, season := range show.Seasons {
		data.Seasons = append(data.Seasons, SeasonTab{
			Name:   season.Name,
			URL:    ShowURL(show.ID) + "&season=" + url.QueryEscape(season.Name),
			Active: i == selected,
		})
	}
	if len(show.Seasons) > 0 {
		season := show.Seasons[selected]
		data.Season = season.Name
		data.Episodes = episodeCards(studio.Name, show, season)
		if first := show.Seasons[0].Episodes; len(first) > 0 {
			data.RestartURL = WatchURL(first[0].ID)
		}
	}

	data.ContinueURL = data.RestartURL
	if pos, ok := ctx.Resume.Get(show.ID); ok {
		if ep, found := locateEpisode(ctx.Catalog, pos.Episode); found && ep.ShowID == show.ID {
			data.Resume = &pos
			data.ContinueURL = resumeURL(ep.ID, pos.Seconds)
		}
	}

	for _, other := range studio.Shows {
		if other.ID == show.ID {
			continue
		}
		if len(data.Suggested) == suggestedSize {
			break
		}
		data.Suggested = append(data.Suggested, newShowCard(studio.Name, other))
	}

	return &View{Title: show.Name, Data: data}, nil
}

// Watch renders the player for ?vid, falling back to the first episode of
// the catalog. The start position comes from ?t or the saved position.
func Watch(ctx *Context) (*View, error) {
	eps := Episodes(ctx.Catalog)
	if len(eps) == 0 {
		return nil, errs.NotFound("episode", ctx.Query.Get("vid"))
	}

	idx := 0
	if vid := ctx.Query.Get("vid"); vid != "" {
		for i, e := range eps {
			if e.ID == vid {
				idx = i
				break
			}
		}
	}
	current := eps[idx]

	data := WatchData{Episode: current, UpNext: make([]EpisodeCard, 0, upNextSize)}
	if studio, show, ok := ctx.Catalog.Locate(current.ShowID); ok {
		data.Show = newShowCard(studio.Name, show)
	}
	if pos, ok := ctx.Resume.Get(current.ShowID); ok && pos.Episode == current.ID {
		data.Start = pos.Seconds
	}
	if t, err := strconv.ParseFloat(ctx.Query.Get("t"), 64); err == nil && t >= 0 && !math.IsInf(t, 0) {
		data.Start = t
	}

	for i := 1; i < len(eps) && len(data.UpNext) < upNextSize; i++ {
		data.UpNext = append(data.UpNext, eps[(idx+i)%len(eps)])
	}

	return &View{Title: current.Name, Data: data}, nil
}

func resumeURL(episodeID string, seconds float64) string {
	link := WatchURL(episodeID)
	if seconds > 0 {
		link += "&t=" + strconv.FormatFloat(seconds, 'f', 0, 64)
	}
	return link
}
