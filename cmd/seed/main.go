package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"datachat-be/internal/config"
	"datachat-be/pkg/search"
)

var products = []struct {
	name     string
	category string
	price    float64
}{
	{"Wireless Mouse", "electronics", 29.99},
	{"Mechanical Keyboard", "electronics", 89.99},
	{"USB-C Hub", "electronics", 45.50},
	{"Noise Cancelling Headphones", "electronics", 199.00},
	{"Standing Desk", "furniture", 420.00},
	{"Ergonomic Chair", "furniture", 310.00},
	{"Desk Lamp", "furniture", 38.75},
	{"Notebook Set", "stationery", 12.40},
	{"Fountain Pen", "stationery", 54.00},
	{"Whiteboard Markers", "stationery", 8.99},
}

var regions = []string{"north", "south", "east", "west"}

var logLevels = []string{"INFO", "INFO", "INFO", "WARN", "ERROR", "DEBUG"}

var logServices = []string{"api-gateway", "auth", "billing", "search", "notifications"}

var logMessages = map[string][]string{
	"INFO":  {"request completed", "user logged in", "cache refreshed", "job finished"},
	"WARN":  {"slow response detected", "retrying upstream call", "queue depth growing"},
	"ERROR": {"upstream timeout", "database connection lost", "unhandled panic recovered"},
	"DEBUG": {"cache miss", "token validated", "payload parsed"},
}

func main() {
	if err := godotenv.Load(); err != nil {
		color.Yellow("Note: no .env file found, using system environment")
	}
	cfg := config.Load()

	client := search.NewClient(
		cfg.Search.URL,
		cfg.Search.Username,
		cfg.Search.Password,
		cfg.Search.MaxQuerySize,
		30*time.Second,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	color.Cyan("Seeding sample data into %s\n", cfg.Search.URL)

	if err := client.Ping(ctx); err != nil {
		color.Red("Search engine unreachable: %v", err)
		return
	}

	rng := rand.New(rand.NewSource(42))

	seedSales(ctx, client, rng)
	seedLogs(ctx, client, rng)

	color.Green("\nDone. Try: \"show me the top 5 products by revenue\"")
}

func seedSales(ctx context.Context, client *search.Client, rng *rand.Rand) {
	color.Yellow("\n[1/2] sample-sales")

	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"product":   map[string]interface{}{"type": "keyword"},
				"category":  map[string]interface{}{"type": "keyword"},
				"region":    map[string]interface{}{"type": "keyword"},
				"quantity":  map[string]interface{}{"type": "integer"},
				"revenue":   map[string]interface{}{"type": "double"},
				"sold_at":   map[string]interface{}{"type": "date"},
				"sales_rep": map[string]interface{}{"type": "keyword"},
			},
		},
	}
	if err := client.CreateIndex(ctx, "sample-sales", mapping); err != nil {
		color.Red("Failed to create index: %v", err)
		return
	}

	start := time.Now().AddDate(0, -6, 0)
	docs := make([]map[string]interface{}, 0, 500)
	for i := 0; i < 500; i++ {
		p := products[rng.Intn(len(products))]
		qty := 1 + rng.Intn(20)
		soldAt := start.Add(time.Duration(rng.Intn(180*24)) * time.Hour)
		docs = append(docs, map[string]interface{}{
			"product":   p.name,
			"category":  p.category,
			"region":    regions[rng.Intn(len(regions))],
			"quantity":  qty,
			"revenue":   float64(qty) * p.price,
			"sold_at":   soldAt.Format(time.RFC3339),
			"sales_rep": fmt.Sprintf("rep-%02d", 1+rng.Intn(12)),
		})
	}

	if err := client.BulkIndex(ctx, "sample-sales", docs); err != nil {
		color.Red("Bulk ingest failed: %v", err)
		return
	}
	color.Green("Indexed %d sales documents", len(docs))
}

func seedLogs(ctx context.Context, client *search.Client, rng *rand.Rand) {
	color.Yellow("\n[2/2] sample-logs")

	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"level":       map[string]interface{}{"type": "keyword"},
				"service":     map[string]interface{}{"type": "keyword"},
				"message":     map[string]interface{}{"type": "text"},
				"latency_ms":  map[string]interface{}{"type": "integer"},
				"status_code": map[string]interface{}{"type": "integer"},
				"timestamp":   map[string]interface{}{"type": "date"},
			},
		},
	}
	if err := client.CreateIndex(ctx, "sample-logs", mapping); err != nil {
		color.Red("Failed to create index: %v", err)
		return
	}

	start := time.Now().AddDate(0, 0, -7)
	docs := make([]map[string]interface{}, 0, 1000)
	for i := 0; i < 1000; i++ {
		level := logLevels[rng.Intn(len(logLevels))]
		msgs := logMessages[level]
		status := 200
		if level == "ERROR" {
			status = 500 + rng.Intn(4)
		} else if level == "WARN" {
			status = 200 + rng.Intn(300)
		}
		docs = append(docs, map[string]interface{}{
			"level":       level,
			"service":     logServices[rng.Intn(len(logServices))],
			"message":     msgs[rng.Intn(len(msgs))],
			"latency_ms":  5 + rng.Intn(950),
			"status_code": status,
			"timestamp":   start.Add(time.Duration(i*10) * time.Minute).Format(time.RFC3339),
		})
	}

	if err := client.BulkIndex(ctx, "sample-logs", docs); err != nil {
		color.Red("Bulk ingest failed: %v", err)
		return
	}
	color.Green("Indexed %d log documents", len(docs))
}
