package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetnav/internal/api"
	"fleetnav/internal/config"
	"fleetnav/internal/integrations/csvfile"
	"fleetnav/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	srvDeps, err := api.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	metrics.RegisterDefault()

	// Optional CSV order feed import at startup
	if path := os.Getenv("ORDERS_CSV"); path != "" {
		importCSVOrders(srvDeps, path)
	}

	mux := http.NewServeMux()

	// Road networks
	mux.HandleFunc("/v1/graphs", srvDeps.GraphsHandler)
	mux.HandleFunc("/v1/graphs/", srvDeps.GraphByIDHandler)

	// Orders
	mux.HandleFunc("/v1/orders", srvDeps.OrdersHandler)

	// Optimization
	mux.HandleFunc("/v1/optimize", srvDeps.OptimizeHandler)
	mux.HandleFunc("/v1/optimize/stream", srvDeps.OptimizeStreamHandler)

	// Plans
	mux.HandleFunc("/v1/plans", srvDeps.PlansHandler)
	mux.HandleFunc("/v1/plans/", srvDeps.PlanByIDHandler)

	// Subscriptions
	mux.HandleFunc("/v1/subscriptions", srvDeps.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", srvDeps.SubscriptionByIDHandler)

	// Health
	mux.HandleFunc("/healthz", srvDeps.HealthHandler)
	mux.HandleFunc("/readyz", srvDeps.ReadyHandler)

	// Observability
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug", srvDeps.DebugJSON)

	addr := ":" + cfg.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(api.Instrument(srvDeps.RateLimit(mux))),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("API listening on %s", addr)
	// Start webhook worker
	if srvDeps.Pub != nil {
		worker := srvDeps.NewWebhookWorker()
		worker.Start()
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

func importCSVOrders(srv *api.Server, path string) {
	adapter := csvfile.Adapter{Path: path}
	tenant := os.Getenv("ORDERS_CSV_TENANT")
	if tenant == "" {
		tenant = "t_demo"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cursor := ""
	total := 0
	for {
		batch, err := adapter.FetchOrders(cursor)
		if err != nil {
			log.Printf("csv import failed: %v", err)
			return
		}
		if len(batch.Orders) > 0 {
			_, created, skipped, err := srv.Store.CreateOrders(ctx, tenant, batch.Orders)
			if err != nil {
				log.Printf("csv import failed: %v", err)
				return
			}
			total += created
			if skipped > 0 {
				log.Printf("csv import: skipped %d duplicate orders", skipped)
			}
		}
		if batch.Cursor == "" {
			break
		}
		cursor = batch.Cursor
	}
	log.Printf("csv import: created %d orders from %s", total, path)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		dur := time.Since(start)
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
	})
}
