// Command gensample writes a fallback incident dataset in the same shape the
// incident server returns ({"items": [...]}). Incidents are scattered around a
// center point and timestamped inside the active window ending at -at, so the
// file is usable as FALLBACK_FILE right after generation.
//
// Usage:
//
//	go run ./cmd/gensample \
//	  -out data/occurrences.sample.json \
//	  -lat -23.5505 -lng -46.6333 -n 40 -spread 1500
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/incident-radar-service/internal/config"
	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/google/uuid"
)

const metersPerDegree = 111_320.0

var descriptions = map[domain.Category][]string{
	"assalto":       {"Dois homens de moto abordando pedestres", "Roubo de celular no ponto de ônibus"},
	"briga":         {"Discussão virou briga na saída do bar", "Confusão em frente à escola"},
	"blitz":         {"Bloqueio policial na avenida", "Fiscalização de motos"},
	"policia":       {"Viaturas paradas na esquina", "Movimentação policial intensa"},
	"confronto":     {"Troca de tiros relatada por moradores"},
	"foragidos":     {"Suspeito fugiu em direção ao parque"},
	"desaparecidos": {"Criança desaparecida perto da praça"},
	"tiros":         {"Barulho de tiros na rua de cima", "Disparos ouvidos há poucos minutos"},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/occurrences.sample.json", "output path")
	lat := flag.Float64("lat", -23.5505, "center latitude")
	lng := flag.Float64("lng", -46.6333, "center longitude")
	n := flag.Int("n", 40, "number of incidents")
	spread := flag.Float64("spread", 1500, "maximum distance from the center in meters")
	seed := flag.Int64("seed", 42, "random seed")
	at := flag.String("at", "", "end of the active window, RFC3339 (default now)")
	categoriesFile := flag.String("categories", "", "category table file (default built-in table)")
	flag.Parse()

	center := domain.Position{Lat: *lat, Lng: *lng}
	if !center.Valid() {
		return fmt.Errorf("invalid center %.6f,%.6f", *lat, *lng)
	}
	if *n <= 0 || *spread <= 0 {
		return fmt.Errorf("-n and -spread must be positive")
	}

	end := time.Now().UTC()
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("parse -at: %w", err)
		}
		end = t.UTC()
	}

	categories, err := config.LoadCategories(*categoriesFile)
	if err != nil {
		return err
	}

	items := generate(rand.New(rand.NewSource(*seed)), categories, center, *n, *spread, end)
	if err := write(*out, items); err != nil {
		return err
	}
	log.Printf("wrote %d incidents to %s", len(items), *out)
	return nil
}

func generate(rng *rand.Rand, categories domain.CategoryTable, center domain.Position, n int, spread float64, end time.Time) []domain.RawIncident {
	ids := categories.IDs()
	window := domain.ActiveWindow - 5*time.Minute

	items := make([]domain.RawIncident, 0, n)
	for range n {
		category := ids[rng.Intn(len(ids))]
		info, _ := categories.Lookup(category)
		pos := scatter(rng, center, spread)
		occurred := end.Add(-time.Duration(rng.Int63n(int64(window))))

		id, err := uuid.NewRandomFromReader(rng)
		if err != nil {
			id = uuid.New()
		}

		item := domain.RawIncident{
			"id":          "occ-" + id.String(),
			"category":    string(category),
			"severity":    string(info.Severity),
			"lat":         round6(pos.Lat),
			"lng":         round6(pos.Lng),
			"radius_m":    float64(100 + 50*rng.Intn(7)),
			"occurred_at": occurred.Truncate(time.Second).Format(time.RFC3339),
		}
		if texts := descriptions[category]; len(texts) > 0 {
			item["description"] = texts[rng.Intn(len(texts))]
		}
		items = append(items, item)
	}
	return items
}

// scatter picks a uniformly distributed point within spread meters of center.
func scatter(rng *rand.Rand, center domain.Position, spread float64) domain.Position {
	r := spread * math.Sqrt(rng.Float64())
	theta := 2 * math.Pi * rng.Float64()
	dLat := r * math.Cos(theta) / metersPerDegree
	dLng := r * math.Sin(theta) / (metersPerDegree * math.Cos(center.Lat*math.Pi/180))
	return domain.Position{Lat: center.Lat + dLat, Lng: center.Lng + dLng}
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}

func write(path string, items []domain.RawIncident) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(map[string]any{"items": items}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
