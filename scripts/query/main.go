package main

import (
	"TraceCorrelator/internal/config"
	"TraceCorrelator/internal/query"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	// Define command-line flags
	mode := flag.String("mode", "api", "Query mode: 'api' to query via HTTP API, 'health' for the gRPC health check, 'direct' to query ClickHouse directly.")
	apiAddr := flag.String("api", "http://localhost:8080", "Base URL of the API server.")
	grpcAddr := flag.String("grpc", "localhost:9090", "Address of the gRPC health server.")
	correlate := flag.Bool("correlate", false, "Trigger a new correlation run before reading the report.")
	flow := flag.String("flow", "", "Query a single flow as sender/receiver instead of the whole report.")
	runID := flag.String("run", "", "Run id to query (required in 'direct' mode).")
	configPath := flag.String("config", "configs/config.yaml", "Configuration holding the ClickHouse writer settings ('direct' mode).")
	flag.Parse()

	log.Printf("Running in '%s' mode.", *mode)

	switch *mode {
	case "api":
		queryViaAPI(*apiAddr, *correlate, *flow, *runID)
	case "health":
		checkHealth(*grpcAddr)
	case "direct":
		directQueryClickHouse(*configPath, *runID)
	default:
		log.Fatalf("Invalid mode: %s. Use 'api', 'health' or 'direct'.", *mode)
	}
}

// --- API Query Logic ---
func queryViaAPI(baseURL string, correlate bool, flow, runID string) {
	if correlate {
		printResponse(http.Post(baseURL+"/api/v1/correlate", "application/json", nil))
		return
	}

	path := "/api/v1/report"
	switch {
	case flow != "":
		path = "/api/v1/flows/" + flow
	case runID != "":
		path = "/api/v1/runs/" + runID
	}
	printResponse(http.Get(baseURL + path))
}

func printResponse(resp *http.Response, err error) {
	if err != nil {
		log.Fatalf("Error sending request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("API returned non-200 status code: %d\nResponse: %s", resp.StatusCode, string(respBody))
	}

	var prettyJSON bytes.Buffer
	err = json.Indent(&prettyJSON, respBody, "", "  ")
	if err != nil {
		log.Printf("Could not prettify JSON, printing raw response:")
		fmt.Println(string(respBody))
		return
	}

	log.Println("---")
	fmt.Println(prettyJSON.String())
}

// --- gRPC Health Logic ---
func checkHealth(addr string) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("Did not connect: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		log.Fatalf("Health check failed: %v", err)
	}
	fmt.Println(resp.GetStatus())
}

// --- Direct ClickHouse Query Logic ---
func directQueryClickHouse(configPath, runID string) {
	if runID == "" {
		log.Fatalf("A run id is required in 'direct' mode.")
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var querier query.Querier
	for _, writerDef := range cfg.Writers {
		if writerDef.Type == "clickhouse" {
			querier, err = query.NewClickHouseQuerier(writerDef.ClickHouse)
			if err != nil {
				log.Fatalf("Error connecting to ClickHouse: %v", err)
			}
			break
		}
	}
	if querier == nil {
		log.Fatalf("No ClickHouse writer found in %s.", configPath)
	}

	totals, err := querier.RunTotals(context.Background(), runID)
	if err != nil {
		log.Fatalf("Error executing query: %v", err)
	}

	log.Println("--- Run Totals (Direct) ---")
	fmt.Printf("RunID: %s\n", runID)
	fmt.Printf("  Flows: %d\n", totals.Flows)
	fmt.Printf("  Sent/Received/Lost: %d %d %d\n", totals.TotalSent(), totals.TotalReceived(), totals.Lost())
	fmt.Printf("  Data Sent/Received/Lost: %d %d %d\n", totals.DataSent, totals.DataReceived, totals.DataLost())
	if avg, err := totals.AverageDelay(); err == nil {
		fmt.Printf("  AverageDelay: %g\n", avg)
	} else {
		fmt.Println("  AverageDelay: n/a")
	}
}
