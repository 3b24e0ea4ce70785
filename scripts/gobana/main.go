package main

import (
	"TraceCorrelator/internal/model"
	"encoding/gob"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/gobana/main.go <flows.gob>")
		os.Exit(1)
	}
	gobFile := os.Args[1]

	file, err := os.Open(gobFile)
	if err != nil {
		log.Fatalf("Unable to open file: %v", err)
	}
	defer file.Close()

	var flows []model.FlowResult
	if err := gob.NewDecoder(file).Decode(&flows); err != nil {
		log.Fatalf("Failed to decode gob: %v", err)
	}

	var totals model.GlobalTotals
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FLOW\tDATA SENT\tDATA RECV\tACK SENT\tACK RECV\tSAMPLES\tAVG DELAY\tMALFORMED\tUNMATCHED")
	for _, f := range flows {
		totals.Add(f)
		avg := "n/a"
		if f.Delay.Count > 0 {
			avg = fmt.Sprintf("%.6f", f.Delay.Sum/float64(f.Delay.Count))
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%s\t%d\t%d\n",
			f.Pair, f.Tally.DataSent, f.Tally.DataReceived, f.Tally.AckSent, f.Tally.AckReceived,
			f.Delay.Count, avg, f.Malformed, f.Unmatched)
	}
	w.Flush()

	fmt.Printf("\nTotal flows: %d, lost %d of %d packets (data lost %d).\n",
		totals.Flows, totals.Lost(), totals.TotalSent(), totals.DataLost())
}
