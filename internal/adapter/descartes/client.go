// Package descartes implements the upstream map-editor Features API used to
// hydrate the feature cache.
package descartes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/closure-relay-service/internal/domain"
)

// ErrUnauthorized is returned when upstream denies the session. The relay
// cannot make forward progress without valid upstream access, so callers
// treat it as fatal.
var ErrUnauthorized = errors.New("descartes: unauthorized")

// Client implements domain.FeatureFetcher over the Features HTTP endpoint.
type Client struct {
	baseURL    string
	cookie     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Features client. The cookie header carries the session
// harvested by the external login automation.
func NewClient(baseURL, cookie string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		cookie:  cookie,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchFeatures retrieves every feature inside the bounding box. The env tag
// selects the upstream URL namespace: "row" and "il" are prefixed
// environments, everything else uses the default one.
func (c *Client) FetchFeatures(ctx context.Context, box domain.FetchBox, env string) (domain.FeatureSet, error) {
	prefix := ""
	if env == "row" || env == "il" {
		prefix = env + "-"
	}

	u := fmt.Sprintf("%s/%sDescartes/app/v1/Features", c.baseURL, prefix)
	params := url.Values{
		"bbox": {fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", box.XMin, box.YMin, box.XMax, box.YMax)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return domain.FeatureSet{}, fmt.Errorf("create request: %w", err)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.FeatureSet{}, fmt.Errorf("features request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return domain.FeatureSet{}, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.FeatureSet{}, fmt.Errorf("features API error: status %d: %s", resp.StatusCode, body)
	}

	var wire response
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return domain.FeatureSet{}, fmt.Errorf("decode response: %w", err)
	}

	set := wire.toFeatureSet()
	c.logger.Debug("features fetched",
		"env", env,
		"segments", len(set.Segments),
		"streets", len(set.Streets),
		"users", len(set.Users),
	)
	return set, nil
}

// Wire types. The API wraps each feature kind in an "objects" list.

type response struct {
	Users     objectList[userObject]    `json:"users"`
	Segments  objectList[segmentObject] `json:"segments"`
	Streets   objectList[streetObject]  `json:"streets"`
	Cities    objectList[cityObject]    `json:"cities"`
	States    objectList[stateObject]   `json:"states"`
	Countries objectList[countryObject] `json:"countries"`
}

type objectList[T any] struct {
	Objects []T `json:"objects"`
}

type userObject struct {
	ID   json.Number `json:"id"`
	Name string      `json:"userName"`
	Rank int         `json:"rank"`
}

type segmentObject struct {
	ID              json.Number `json:"id"`
	RoadType        int         `json:"roadType"`
	PrimaryStreetID json.Number `json:"primaryStreetID"`
}

type streetObject struct {
	ID          json.Number `json:"id"`
	Name        string      `json:"name"`
	EnglishName string      `json:"englishName"`
	CityID      json.Number `json:"cityID"`
}

type cityObject struct {
	ID          json.Number `json:"id"`
	Name        string      `json:"name"`
	EnglishName string      `json:"englishName"`
	StateID     json.Number `json:"stateID"`
	CountryID   json.Number `json:"countryID"`
}

type stateObject struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
}

type countryObject struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
	Abbr string      `json:"abbr"`
}

func (r response) toFeatureSet() domain.FeatureSet {
	set := domain.FeatureSet{
		Users:     make(map[string]domain.User, len(r.Users.Objects)),
		Segments:  make(map[string]domain.Segment, len(r.Segments.Objects)),
		Streets:   make(map[string]domain.Street, len(r.Streets.Objects)),
		Cities:    make(map[string]domain.City, len(r.Cities.Objects)),
		States:    make(map[string]domain.State, len(r.States.Objects)),
		Countries: make(map[string]domain.Country, len(r.Countries.Objects)),
	}
	for _, o := range r.Users.Objects {
		set.Users[o.ID.String()] = domain.User{Name: o.Name, Rank: o.Rank}
	}
	for _, o := range r.Segments.Objects {
		set.Segments[o.ID.String()] = domain.Segment{RoadType: o.RoadType, StreetID: o.PrimaryStreetID.String()}
	}
	for _, o := range r.Streets.Objects {
		set.Streets[o.ID.String()] = domain.Street{Name: o.Name, EnglishName: o.EnglishName, CityID: o.CityID.String()}
	}
	for _, o := range r.Cities.Objects {
		set.Cities[o.ID.String()] = domain.City{Name: o.Name, EnglishName: o.EnglishName, StateID: o.StateID.String(), CountryID: o.CountryID.String()}
	}
	for _, o := range r.States.Objects {
		set.States[o.ID.String()] = domain.State{Name: o.Name}
	}
	for _, o := range r.Countries.Objects {
		set.Countries[o.ID.String()] = domain.Country{Name: o.Name, Abbr: o.Abbr}
	}
	return set
}
