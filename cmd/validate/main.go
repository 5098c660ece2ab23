// Command validate checks an incident dataset (a fallback file or a captured
// server response) and an optional category table before they are deployed. It
// runs every record through the same normalizer the radar uses and reports
// records that would be dropped, duplicate ids, unknown categories and records
// already outside the active window.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -dataset data/occurrences.sample.json \
//	  -categories config/categories.yaml \
//	  -now 2024-04-26T15:00:00Z
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	apiadapter "github.com/couchcryptid/incident-radar-service/internal/adapter/api"
	"github.com/couchcryptid/incident-radar-service/internal/config"
	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/jonboulle/clockwork"
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
	dataset := flag.String("dataset", "", "path to an incident list JSON file")
	categoriesFile := flag.String("categories", "", "category table file (default built-in table)")
	nowFlag := flag.String("now", "", "reference time for the active window, RFC3339 (default now)")
	requireActive := flag.Bool("require-active", false, "fail when records are outside the active window")
	flag.Parse()

	if *dataset == "" {
		flag.Usage()
		os.Exit(1)
	}

	now := time.Now().UTC()
	if *nowFlag != "" {
		t, err := time.Parse(time.RFC3339, *nowFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: parse -now: %v\n", err)
			os.Exit(1)
		}
		now = t
	}

	os.Exit(run(*dataset, *categoriesFile, now, *requireActive))
}

func run(datasetPath, categoriesPath string, now time.Time, requireActive bool) int {
	// Records without timestamps are stamped with the reference time.
	domain.SetClock(clockwork.NewFakeClockAt(now))
	defer domain.SetClock(nil)

	fmt.Println("=== Incident Dataset Validation ===")
	fmt.Println()

	categories, err := config.LoadCategories(categoriesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	data, err := os.ReadFile(datasetPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read dataset: %v\n", err)
		return 1
	}
	raws, err := apiadapter.DecodeList(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	normalizer := domain.NewNormalizer(categories, domain.DefaultRadiusMeters)
	incidents, normPhase := validateNormalization(normalizer, raws)
	activePhase := validateActiveWindow(incidents, now)

	phases := []*phase{
		normPhase,
		validateIdentity(incidents),
		validateCategories(categories, raws),
	}
	if requireActive {
		phases = append(phases, activePhase)
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d decoded, %d normalized, %d active at %s\n",
		len(raws), len(incidents), len(incidents)-len(activePhase.errors), now.Format(time.RFC3339))
	if !requireActive && !activePhase.passed() {
		fmt.Printf("Note: %d records are outside the active window and would be hidden\n", len(activePhase.errors))
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	return 0
}

func validateNormalization(n *domain.Normalizer, raws []domain.RawIncident) ([]domain.Incident, *phase) {
	p := &phase{name: "Normalization"}
	incidents := make([]domain.Incident, 0, len(raws))
	for i, raw := range raws {
		inc, ok := n.Normalize(raw)
		if !ok {
			p.errorf("record %d (id=%v): rejected by normalizer", i, raw["id"])
			continue
		}
		incidents = append(incidents, inc)
	}
	return incidents, p
}

func validateIdentity(incidents []domain.Incident) *phase {
	p := &phase{name: "Unique ids"}
	seen := make(map[string]int, len(incidents))
	for i, inc := range incidents {
		if first, ok := seen[inc.ID]; ok {
			p.errorf("record %d: id %q already used by record %d", i, inc.ID, first)
			continue
		}
		seen[inc.ID] = i
	}
	return p
}

func validateCategories(table domain.CategoryTable, raws []domain.RawIncident) *phase {
	p := &phase{name: "Known categories"}
	for i, raw := range raws {
		name, _ := raw["category"].(string)
		if name == "" {
			name, _ = raw["type"].(string)
		}
		if name == "" {
			continue
		}
		if _, ok := table.Lookup(domain.Category(strings.ToLower(name))); !ok {
			p.errorf("record %d (id=%v): unknown category %q", i, raw["id"], name)
		}
	}
	return p
}

func validateActiveWindow(incidents []domain.Incident, now time.Time) *phase {
	p := &phase{name: "Active window"}
	for _, inc := range incidents {
		if !inc.ActiveAt(now, domain.ActiveWindow) {
			p.errorf("id %s: occurred at %s, %s before reference time",
				inc.ID, inc.OccurredAt.Format(time.RFC3339), now.Sub(inc.OccurredAt).Round(time.Minute))
		}
	}
	return p
}
