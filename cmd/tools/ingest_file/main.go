package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"

	"github.com/david/bidsense/internal/app"
)

func main() {
	configFile := flag.String("config", "", "Path to bidsense.yaml (default: ./bidsense.yaml or ./configs/bidsense.yaml)")
	source := flag.String("source", "", "Source label recorded on every document (default: Manual Upload)")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("usage: ingest_file [-config file] [-source label] <file-or-directory>...")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *configFile, *source, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, configFile, source string, locations []string) error {
	env, err := app.Setup(ctx, configFile)
	if err != nil {
		return err
	}
	defer env.Close()

	files := app.NewFiles()
	pipeline := env.Pipeline()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"File", "Title", "Category", "Score", "Decision", "Status", "New"})

	failed := 0
	for _, location := range locations {
		docs, err := files.Documents(ctx, location, source)
		if err != nil {
			env.Log.Error("read input failed", zap.String("location", location), zap.Error(err))
			failed++
			continue
		}
		for _, doc := range docs {
			res, err := pipeline.IngestDocument(ctx, doc)
			if err != nil {
				env.Log.Error("ingest failed", zap.String("file", doc.Name), zap.Error(err))
				failed++
				continue
			}
			t.AppendRow(table.Row{doc.Name, res.Title, res.Category, res.Score, res.Decision, res.Status, res.Created})
		}
	}
	t.Render()

	if failed > 0 {
		return fmt.Errorf("%d input(s) failed", failed)
	}
	return nil
}
