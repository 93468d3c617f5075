// rundemo starts a graph run against a graphrun server and polls its state
// until the run is done.
// Usage: go run ./cmd/rundemo [-addr http://localhost:8000] [-graph async_demo_v1]
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	json "github.com/goccy/go-json"
)

const sampleCode = `def add(a, b):
    return a + b

def a_function_with_a_rather_long_name():
    return "this line is fine"
`

type runState struct {
	Run struct {
		RunID       string         `json:"run_id"`
		CurrentNode *string        `json:"current_node"`
		State       map[string]any `json:"state"`
		Logs        []string       `json:"logs"`
		Done        bool           `json:"done"`
	} `json:"run"`
}

func main() {
	addr := flag.String("addr", "http://localhost:8000", "graphrun server base URL")
	graphID := flag.String("graph", "async_demo_v1", "graph to run")
	interval := flag.Duration("interval", time.Second, "poll interval")
	timeout := flag.Duration("timeout", 2*time.Minute, "give up after this long")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	client := &http.Client{Timeout: 10 * time.Second}

	runID, err := startRun(client, *addr, *graphID)
	if err != nil {
		log.Fatalf("start run: %v", err)
	}
	logger.Info("run started", "run_id", runID, "graph_id", *graphID)

	printed := 0
	deadline := time.Now().Add(*timeout)
	for time.Now().Before(deadline) {
		st, err := fetchState(client, *addr, runID)
		if err != nil {
			log.Fatalf("fetch state: %v", err)
		}
		for _, line := range st.Run.Logs[min(printed, len(st.Run.Logs)):] {
			logger.Info("run log", "line", line)
		}
		printed = len(st.Run.Logs)

		current := "none"
		if st.Run.CurrentNode != nil {
			current = *st.Run.CurrentNode
		}
		logger.Info("poll", "current_node", current, "done", st.Run.Done)

		if st.Run.Done {
			out, err := json.MarshalIndent(st.Run.State, "", "  ")
			if err != nil {
				log.Fatalf("encode state: %v", err)
			}
			fmt.Println(string(out))
			return
		}
		time.Sleep(*interval)
	}
	log.Fatalf("run %s did not finish within %v", runID, *timeout)
}

func startRun(client *http.Client, addr, graphID string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"graph_id":      graphID,
		"initial_state": map[string]any{"code": sampleCode},
	})
	if err != nil {
		return "", err
	}

	resp, err := client.Post(addr+"/graph/run", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out struct {
		RunID string `json:"run_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.RunID, nil
}

func fetchState(client *http.Client, addr, runID string) (runState, error) {
	var st runState
	resp, err := client.Get(addr + "/graph/state/" + runID)
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decode state: %w", err)
	}
	return st, nil
}
