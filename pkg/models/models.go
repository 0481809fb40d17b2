package models

import "time"

// Studio represents a top-level grouping of shows
type Studio struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Logo  string `json:"logo,omitempty"`
	Shows []Show `json:"shows"`
}

// Show represents a named series within a studio
type Show struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Logo    string   `json:"logo,omitempty"`
	Banner  string   `json:"banner,omitempty"`
	Seasons []Season `json:"seasons"`
}

// Season groups the episodes of a show
type Season struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Thumb    string    `json:"thumb,omitempty"`
	Episodes []Episode `json:"episodes"`
}

// Episode represents a single playable video file
type Episode struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Src      string    `json:"src"`
	Thumb    string    `json:"thumb,omitempty"`
	Modified time.Time `json:"modified"`
}

// Catalog is the normalized studio tree plus the flattened episode list
type Catalog struct {
	Studios []Studio  `json:"studios"`
	Videos  []Episode `json:"videos"`
}

// ShowDetail is a show together with the name of its studio
type ShowDetail struct {
	Show
	Studio string `json:"studio"`
}

// EpisodeCount returns the number of episodes across all seasons
func (s Show) EpisodeCount() int {
	n := 0
	for _, season := range s.Seasons {
		n += len(season.Episodes)
	}
	return n
}

// Flatten rebuilds the Videos list from the studio tree
func (c *Catalog) Flatten() {
	videos := make([]Episode, 0)
	for _, studio := range c.Studios {
		for _, show := range studio.Shows {
			for _, season := range show.Seasons {
				videos = append(videos, season.Episodes...)
			}
		}
	}
	c.Videos = videos
}

// Locate finds a show by its id or by its "studio/show" name, together with
// the studio holding it.
func (c *Catalog) Locate(id string) (Studio, Show, bool) {
	if c == nil {
		return Studio{}, Show{}, false
	}
	for _, studio := range c.Studios {
		for _, show := range studio.Shows {
			if show.ID == id || studio.Name+"/"+show.Name == id {
				return studio, show, true
			}
		}
	}
	return Studio{}, Show{}, false
}

// ObjectInfo describes a stored object in an admin listing
type ObjectInfo struct {
	Key      string    `json:"key"`
	Size     int64     `json:"size"`
	Uploaded time.Time `json:"uploaded"`
	ETag     string    `json:"-"`
}

// Listing is one level of an object store below a prefix
type Listing struct {
	Prefixes []string     `json:"prefixes"`
	Objects  []ObjectInfo `json:"objects"`
}

// CompletedPart identifies an uploaded part of a multipart upload
type CompletedPart struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

// MultipartStart is returned when a multipart upload is registered
type MultipartStart struct {
	UploadID string `json:"uploadId"`
	PartSize int64  `json:"partSize"`
}
