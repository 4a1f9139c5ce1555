// Package notify renders closure notifications and delivers them to the
// webhook destinations configured per region.
package notify

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/closure-relay-service/internal/domain"
)

// searchParams narrows the location deep link to road-work news results.
const searchParams = `(road | improvements | closure | construction | project | work | detour | maintenance | closed ) AND (city | town | county | state) -realtor -zillow`

const (
	editorBaseURL  = "https://www.waze.com/en-US/editor"
	liveMapBaseURL = "https://www.waze.com/live-map/directions"
	appBaseURL     = "https://www.waze.com/ul"
	profileBaseURL = "https://www.waze.com/user/editor"
	searchBaseURL  = "https://www.google.com/search"
)

// Renderer builds destination payloads for notification groups.
type Renderer struct {
	tileServers []string
}

// NewRenderer creates a Renderer over the configured tile server templates.
func NewRenderer(tileServers []string) *Renderer {
	return &Renderer{tileServers: tileServers}
}

// linkSet holds every deep link derived from a group's lead closure. All
// group members share one segment, so one set serves the whole group.
type linkSet struct {
	SearchURL  string
	EditorURL  string
	LiveMapURL string
	AppURL     string
	DotMapURL  string // empty when the region has no reference-map template
	DotMapName string
	TileURL    string
}

// buildLinks derives the link set for a group from its first closure.
func (r *Renderer) buildLinks(g domain.NotificationGroup) linkSet {
	lead := g.Closures[0]
	lat, lon := lead.Centroid()

	searchQuery := url.QueryEscape(fmt.Sprintf("(%s | %v,%v) %s", lead.Location, lat, lon, searchParams))

	ls := linkSet{
		SearchURL: fmt.Sprintf("%s?q=%s&udm=50", searchBaseURL, searchQuery),
		EditorURL: fmt.Sprintf("%s?env=%s&lat=%.6f&lon=%.6f&zoomLevel=17&segments=%s",
			editorBaseURL, g.Region.Env, lat, lon, lead.SegmentID),
		LiveMapURL: fmt.Sprintf("%s?to=ll.%.6f%%2C%.6f", liveMapBaseURL, lat, lon),
		AppURL:     fmt.Sprintf("%s?ll=%.6f,%.6f", appBaseURL, lat, lon),
	}

	if g.Region.DotMapURL != "" {
		ls.DotMapURL = expandDotMap(g.Region.DotMapURL, lat, lon)
		ls.DotMapName = g.Region.DotMapName
		if ls.DotMapName == "" {
			ls.DotMapName = "DOT"
		}
	}

	tileX := domain.LonToTileX(lon, domain.PreviewZoom)
	tileY := domain.LatToTileY(lat, domain.PreviewZoom)
	ls.TileURL = domain.PickTileServer(tileX, tileY, r.tileServers, g.Region.Env)

	return ls
}

// expandDotMap fills a reference-map template. Two {lat}/{lon} pairs get a
// small bounding box around the point; one pair gets the point itself.
func expandDotMap(template string, lat, lon float64) string {
	lat3 := math.Round(lat*1000) / 1000
	lon3 := math.Round(lon*1000) / 1000

	if strings.Count(template, "{lat}") == 2 && strings.Count(template, "{lon}") == 2 {
		out := strings.Replace(template, "{lat}", fmt.Sprintf("%.6f", lat3+0.005), 1)
		out = strings.Replace(out, "{lat}", fmt.Sprintf("%.6f", lat3-0.005), 1)
		out = strings.Replace(out, "{lon}", fmt.Sprintf("%.6f", lon3+0.005), 1)
		out = strings.Replace(out, "{lon}", fmt.Sprintf("%.6f", lon3-0.005), 1)
		return out
	}
	out := strings.Replace(template, "{lat}", fmt.Sprintf("%.6f", lat), 1)
	return strings.Replace(out, "{lon}", fmt.Sprintf("%.6f", lon), 1)
}

// Discord payload types.

type EmbedAuthor struct {
	Name string `json:"name"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedThumbnail struct {
	URL string `json:"url"`
}

type Embed struct {
	Author    EmbedAuthor    `json:"author"`
	Color     int            `json:"color"`
	Fields    []EmbedField   `json:"fields"`
	Thumbnail EmbedThumbnail `json:"thumbnail"`
}

// DiscordPayload is the webhook body for a Discord destination.
type DiscordPayload struct {
	Embeds []Embed `json:"embeds"`
}

// RenderDiscord builds the Discord payload for a group: the rich card shape
// for a single closure, the aggregate shape for several on one segment.
func (r *Renderer) RenderDiscord(g domain.NotificationGroup) DiscordPayload {
	links := r.buildLinks(g)
	lead := g.Closures[0]

	linksValue := fmt.Sprintf("[WME](%s) | [LiveMap](%s) | [App](%s)", links.EditorURL, links.LiveMapURL, links.AppURL)
	if links.DotMapURL != "" {
		linksValue += fmt.Sprintf(" | [%s](%s)", links.DotMapName, links.DotMapURL)
	}
	locationValue := fmt.Sprintf("[%s](%s)", lead.Location, links.SearchURL)

	var embed Embed
	if len(g.Closures) == 1 {
		embed = Embed{
			Author: EmbedAuthor{Name: fmt.Sprintf("%s App Closure (%s)", lead.DisplayStatus(), lead.Direction())},
			Color:  domain.RoadTypeColor(lead.RoadType),
			Fields: []EmbedField{
				{Name: "User", Value: discordUserLink(lead.Reporter)},
				{Name: "Reported at", Value: discordTimestamp(lead.CreatedOn)},
				{Name: "Duration", Value: lead.DisplayDuration()},
				{Name: "Segment Type", Value: lead.RoadTypeLabel, Inline: true},
				{Name: "Location", Value: locationValue, Inline: true},
				{Name: "Links", Value: linksValue},
			},
			Thumbnail: EmbedThumbnail{URL: links.TileURL},
		}
	} else {
		lines := make([]string, len(g.Closures))
		for i, c := range g.Closures {
			lines[i] = fmt.Sprintf("%d. **%s** (%s) by %s - Duration: %s - %s",
				i+1, c.DisplayStatus(), c.Direction(), discordUserLink(c.Reporter),
				c.DisplayDuration(), discordTimestamp(c.CreatedOn))
		}
		embed = Embed{
			Author: EmbedAuthor{Name: fmt.Sprintf("%d App Closures on Same Segment", len(g.Closures))},
			Color:  domain.RoadTypeColor(lead.RoadType),
			Fields: []EmbedField{
				{Name: "Closures", Value: strings.Join(lines, "\n")},
				{Name: "Segment Type", Value: lead.RoadTypeLabel, Inline: true},
				{Name: "Location", Value: locationValue, Inline: true},
				{Name: "Links", Value: linksValue},
			},
			Thumbnail: EmbedThumbnail{URL: links.TileURL},
		}
	}

	return DiscordPayload{Embeds: []Embed{embed}}
}

// Slack payload types.

type TextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Accessory struct {
	Type     string `json:"type"`
	ImageURL string `json:"image_url"`
	AltText  string `json:"alt_text"`
}

type Block struct {
	Type      string       `json:"type"`
	BlockID   string       `json:"block_id,omitempty"`
	Text      *TextObject  `json:"text,omitempty"`
	Fields    []TextObject `json:"fields,omitempty"`
	Accessory *Accessory   `json:"accessory,omitempty"`
}

// SlackPayload is the webhook body for a Slack destination.
type SlackPayload struct {
	Blocks []Block `json:"blocks"`
}

// RenderSlack builds the block-structured Slack payload for a group.
func (r *Renderer) RenderSlack(g domain.NotificationGroup) SlackPayload {
	links := r.buildLinks(g)
	lead := g.Closures[0]

	linksText := fmt.Sprintf("*Links*\n• <%s|WME> | <%s|LiveMap> | <%s|App>", links.EditorURL, links.LiveMapURL, links.AppURL)
	if links.DotMapURL != "" {
		linksText += fmt.Sprintf(" | <%s|%s>", links.DotMapURL, links.DotMapName)
	}
	locationText := fmt.Sprintf("*Location*\n<%s|%s>", links.SearchURL, lead.Location)

	thumb := &Accessory{Type: "image", ImageURL: links.TileURL, AltText: "Tile preview"}

	var blocks []Block
	if len(g.Closures) == 1 {
		blocks = []Block{
			{
				Type: "section",
				Text: &TextObject{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*%s App Closure (%s)*\n*User*\n%s",
						lead.DisplayStatus(), lead.Direction(), slackUserLink(lead.Reporter)),
				},
				Accessory: thumb,
			},
			{
				Type:    "section",
				BlockID: "reportedAt",
				Fields: []TextObject{{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*Reported At*\n%s\n*Duration*\n%s",
						slackTimestamp(lead.CreatedOn, lead.CreatedAt()), lead.DisplayDuration()),
				}},
			},
			{
				Type:    "section",
				BlockID: "segmentLocation",
				Fields: []TextObject{
					{Type: "mrkdwn", Text: "*Segment Type*\n" + lead.RoadTypeLabel},
					{Type: "mrkdwn", Text: locationText},
				},
			},
			{
				Type:    "section",
				BlockID: "links",
				Fields:  []TextObject{{Type: "mrkdwn", Text: linksText}},
			},
		}
	} else {
		lines := make([]string, len(g.Closures))
		for i, c := range g.Closures {
			lines[i] = fmt.Sprintf("%d. *%s* (%s) by %s - Duration: %s - %s",
				i+1, c.DisplayStatus(), c.Direction(), slackUserLink(c.Reporter),
				c.DisplayDuration(), slackTimestamp(c.CreatedOn, c.CreatedAt()))
		}
		blocks = []Block{
			{
				Type:      "section",
				Text:      &TextObject{Type: "mrkdwn", Text: fmt.Sprintf("*%d App Closures on Same Segment*", len(g.Closures))},
				Accessory: thumb,
			},
			{
				Type:    "section",
				BlockID: "closureDetails",
				Text:    &TextObject{Type: "mrkdwn", Text: "*Closures*\n" + strings.Join(lines, "\n")},
			},
			{
				Type:    "section",
				BlockID: "segmentLocation",
				Fields: []TextObject{
					{Type: "mrkdwn", Text: "*Segment Type*\n" + lead.RoadTypeLabel},
					{Type: "mrkdwn", Text: locationText},
				},
			},
			{
				Type:    "section",
				BlockID: "links",
				Fields:  []TextObject{{Type: "mrkdwn", Text: linksText}},
			},
		}
	}

	return SlackPayload{Blocks: blocks}
}

func discordUserLink(name string) string {
	return fmt.Sprintf("[%s](%s/%s)", name, profileBaseURL, url.PathEscape(name))
}

func slackUserLink(name string) string {
	return fmt.Sprintf("<%s/%s|%s>", profileBaseURL, url.PathEscape(name), name)
}

// discordTimestamp renders an epoch-millisecond time as a Discord dynamic
// timestamp.
func discordTimestamp(ms int64) string {
	return fmt.Sprintf("<t:%d:F>", ms/1000)
}

// slackTimestamp renders an epoch-millisecond time as a Slack date token
// with a plain-text fallback.
func slackTimestamp(ms int64, fallback time.Time) string {
	return fmt.Sprintf("<!date^%d^{date_long} {time}|%s>", ms/1000, fallback.Format("Jan 2, 2006 3:04 PM"))
}
