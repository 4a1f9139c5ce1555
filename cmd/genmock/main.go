// Command genmock generates synthetic closure upload batches for exercising
// the relay locally. It writes the batch as a JSON fixture and can POST it
// straight to a running relay's uploadClosures endpoint.
//
// Usage:
//
//	go run ./cmd/genmock -count 20 -out testdata/upload.json
//	go run ./cmd/genmock -count 20 -post http://localhost:8080/uploadClosures
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/closure-relay-service/internal/domain"
)

var streets = []string{
	"Main St", "Oak Ave", "Route 9", "I-55 N", "Lincoln Hwy",
	"Veterans Pkwy", "5th St", "Washington Blvd",
}

var cities = []string{
	"Springfield, Illinois, USA",
	"Decatur, Illinois, USA",
	"Bloomington, Illinois, USA",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	count := flag.Int("count", 10, "number of closures to generate")
	user := flag.String("user", "mock-agent", "uploading user name")
	seed := flag.Int64("seed", 1, "random seed")
	out := flag.String("out", "", "output path for the JSON fixture")
	post := flag.String("post", "", "uploadClosures URL to POST the batch to")
	flag.Parse()

	if *out == "" && *post == "" {
		flag.Usage()
		return fmt.Errorf("at least one of -out or -post is required")
	}

	// Fixed clock so regenerated fixtures diff cleanly.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	upload := generate(*count, *user, rand.New(rand.NewSource(*seed)))

	data, err := json.MarshalIndent(upload, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize batch: %w", err)
	}

	if *out != "" {
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			return fmt.Errorf("write fixture: %w", err)
		}
		log.Printf("wrote %d closures to %s", len(upload.Closures), *out)
	}

	if *post != "" {
		resp, err := http.Post(*post, "application/json", bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("post batch: %w", err)
		}
		defer resp.Body.Close()
		log.Printf("posted %d closures: %s", len(upload.Closures), resp.Status)
	}
	return nil
}

func generate(count int, user string, rng *rand.Rand) domain.Upload {
	now := domain.Now()
	closures := make([]domain.ClosureEvent, count)

	for i := range closures {
		// Roughly one closure in three shares a segment with a neighbor so
		// grouped notifications show up in the output.
		segment := fmt.Sprintf("%d", 100000+rng.Intn(count*2/3+1))
		lat := 39.78 + rng.Float64()*0.2
		lon := -89.65 + rng.Float64()*0.2

		closures[i] = domain.ClosureEvent{
			ID:        fmt.Sprintf("mock-%d", i+1),
			SegmentID: segment,
			CreatedBy: fmt.Sprintf("%d", 2000+rng.Intn(5)),
			CreatedOn: now.Add(-time.Duration(rng.Intn(48))*time.Hour).UnixMilli(),
			IsForward: rng.Intn(2) == 0,
			Lat:       lat,
			Lon:       lon,
			Geometry:  [][2]float64{{lon, lat}, {lon + 0.001, lat + 0.001}},
			Location:  fmt.Sprintf("%s, %s", streets[rng.Intn(len(streets))], cities[rng.Intn(len(cities))]),
			RoadType:  []int{1, 2, 3, 6, 7}[rng.Intn(5)],
			Duration:  []string{"2 hours", "1 day", "3 days", ""}[rng.Intn(4)],
			Status:    []string{"", "Active"}[rng.Intn(2)],
			StartDate: now.Add(-2 * time.Hour).UnixMilli(),
			EndDate:   now.Add(24 * time.Hour).UnixMilli(),
		}
	}

	return domain.Upload{UserName: user, Closures: closures}
}
