package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/bidsense/internal/policy"
)

func main() {
	path := flag.String("policy", "", "Policy file to check (YAML or JSON); empty checks the built-in defaults")
	flag.Parse()

	pol, err := policy.Load(*path)
	if err != nil {
		log.Fatal(err)
	}

	source := *path
	if source == "" {
		source = "built-in defaults"
	}
	fmt.Printf("Policy OK: %s\nDigest: %s\n\n", source, pol.Digest())

	weights := pol.WeightTable()
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Weight", "Value"})
	weightsNames := make([]string, 0, len(weights))
	for name := range weights {
		weightsNames = append(weightsNames, name)
	}
	slices.Sort(weightsNames)
	for _, name := range weightsNames {
		t.AppendRow(table.Row{name, weights[name]})
	}
	t.Render()

	th := pol.Thresholds
	fmt.Printf("\nSelect to Bid: score >= %v\nHold: %v <= score < %v\nIgnore: score < %v\n",
		th.AutoSelect, th.HoldMin, th.AutoSelect, th.HoldMin)
	fmt.Printf("Core categories: %s\n", strings.Join(pol.CoreCategories, ", "))

	if len(pol.OverrideRules) == 0 {
		return
	}
	rules := table.NewWriter()
	rules.SetOutputMirror(os.Stdout)
	rules.AppendHeader(table.Row{"#", "Title contains", "Category contains", "Decision", "Reason"})
	for i, r := range pol.OverrideRules {
		rules.AppendRow(table.Row{i + 1, r.MatchTitle, r.MatchCategory, r.Decision, r.Reason})
	}
	fmt.Println()
	rules.Render()
}
