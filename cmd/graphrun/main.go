package main

import (
	"context"
	"log"
	"os"

	"github.com/seantiz/graphrun/internal/api"
	"github.com/seantiz/graphrun/internal/catalog"
	"github.com/seantiz/graphrun/internal/config"
	"github.com/seantiz/graphrun/internal/engine"
	"github.com/seantiz/graphrun/internal/store"
	"github.com/seantiz/graphrun/internal/tool"
	"github.com/seantiz/graphrun/internal/tool/builtin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	logger.Info("graphrun: starting",
		"listen_addr", cfg.ListenAddr,
		"blocking_workers", cfg.BlockingWorkers,
		"graphs_dir", cfg.GraphsDir,
	)

	graphs, err := store.NewSQLiteStore()
	if err != nil {
		log.Fatalf("failed to open graph store: %v", err)
	}
	defer graphs.Close()

	defs, err := catalog.LoadEmbedded()
	if err != nil {
		log.Fatalf("failed to load built-in graphs: %v", err)
	}
	if cfg.GraphsDir != "" {
		extra, err := catalog.Load(cfg.GraphsDir)
		if err != nil {
			log.Fatalf("failed to load graphs from %s: %v", cfg.GraphsDir, err)
		}
		defs = append(defs, extra...)
	}
	if err := catalog.Register(context.Background(), graphs, defs); err != nil {
		log.Fatalf("failed to register graphs: %v", err)
	}
	logger.Info("graph catalog registered", "graphs", len(defs))

	tools := tool.NewRegistry()
	builtin.RegisterAll(tools)

	runs := store.NewRunRegistry()
	eng := engine.NewEngine(graphs, runs, tools, engine.NewWorkerPool(cfg.BlockingWorkers), logger)
	sched := engine.NewScheduler(eng, graphs, runs, eng.Broker(), logger)

	srv := api.NewServer(cfg.ListenAddr, api.Services{
		Graphs:    graphs,
		Runs:      runs,
		Tools:     tools,
		Engine:    eng,
		Scheduler: sched,
	}, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}

	logger.Info("waiting for background runs")
	sched.Wait()
}
