// Command adwinctl is a dev CLI for adwin maintenance and debugging tasks.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/pkg/browser"

	"github.com/voxanet/adwin/internal/app"
	"github.com/voxanet/adwin/internal/config"
	"github.com/voxanet/adwin/internal/fbads"
	"github.com/voxanet/adwin/internal/pipeline"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "check-token":
		if len(os.Args) < 3 {
			fmt.Println("Usage: adwinctl check-token <token>")
			os.Exit(1)
		}
		runCheckToken(os.Args[2])
	case "run":
		if len(os.Args) < 3 {
			fmt.Println("Usage: adwinctl run <client-id>")
			os.Exit(1)
		}
		runPipeline(os.Args[2])
	case "open":
		if len(os.Args) < 3 {
			fmt.Println("Usage: adwinctl open <data|reports>")
			os.Exit(1)
		}
		runOpen(os.Args[2])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: adwinctl <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  check-token <token>   Validate a Facebook token and list its active ad accounts")
	fmt.Println("  run <client-id>       Run one analysis pipeline synchronously for a client")
	fmt.Println("  open data             Open the data directory in the file explorer")
	fmt.Println("  open reports          Open the reports directory in the file explorer")
}

func loadConfig() *config.Config {
	cfg, err := config.Load("adwin.toml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func runCheckToken(token string) {
	client := fbads.New(token, "", fbads.Options{})
	ok, reason, accounts := client.CheckToken(context.Background())
	if !ok {
		fmt.Printf("Token invalid: %s\n", reason)
		os.Exit(1)
	}

	fmt.Println("Token valid.")
	if len(accounts) == 0 {
		fmt.Println("No active ad accounts.")
		return
	}
	fmt.Println("Active ad accounts:")
	for _, acc := range accounts {
		fmt.Printf("  %s  %s\n", acc.ID, acc.Name)
	}
}

func runPipeline(arg string) {
	clientID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		log.Fatalf("Invalid client id %q", arg)
	}

	a, err := app.New(loadConfig())
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Store.Close()

	client, err := a.Store.GetClient(clientID)
	if err != nil {
		log.Fatalf("Client %d: %v", clientID, err)
	}

	reportID, err := a.Store.CreateReport(clientID, "video")
	if err != nil {
		log.Fatalf("Create report: %v", err)
	}

	log.Printf("Running pipeline for client %q (report %d)...", client.Name, reportID)
	job := pipeline.Job{ReportID: reportID, Client: *client, MediaType: "video"}
	if err := a.Runner.RunJob(context.Background(), job); err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	report, err := a.Store.GetReport(reportID)
	if err != nil {
		log.Fatalf("Read report: %v", err)
	}
	fmt.Printf("Report %d completed: %s (total cost %.4f $)\n", reportID, report.ReportPath, report.TotalCost)
}

func runOpen(target string) {
	cfg := loadConfig()

	var path string
	switch target {
	case "data":
		path = cfg.DataPath()
	case "reports":
		path = cfg.DataPath("reports")
	default:
		fmt.Printf("Unknown target: %s\n", target)
		os.Exit(1)
	}

	if err := browser.OpenFile(path); err != nil {
		log.Fatalf("Failed to open: %v", err)
	}
}
