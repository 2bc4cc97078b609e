// Package exec calls out to a code-execution service. The hub only
// depends on Runner, so providers can be swapped or faked in tests.
package exec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"log/slog"
)

// Request is one execution of a piece of code.
type Request struct {
	Language string
	Version  string
	Code     string
	Stdin    string
}

// Result carries the program's output. On failure the hub attaches a
// diagnostic instead, never leaving the requester waiting.
type Result struct {
	Stdout string
	Stderr string
}

// Runtime is one language/version pair the service can run.
type Runtime struct {
	Language string   `json:"language"`
	Version  string   `json:"version"`
	Aliases  []string `json:"aliases,omitempty"`
}

// Runner submits code for execution. Every call is an independent
// execution; there is no deduplication.
type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// Piston talks to a Piston-compatible execute API.
type Piston struct {
	base   string
	client *http.Client
	log    *slog.Logger
}

// NewPiston builds a client with a bounded per-request timeout.
func NewPiston(base string, timeout time.Duration, log *slog.Logger) *Piston {
	return &Piston{
		base:   base,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

type pistonFile struct {
	Content string `json:"content"`
}

type pistonReq struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Files    []pistonFile `json:"files"`
	Stdin    string       `json:"stdin"`
}

type pistonResp struct {
	Run struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
	} `json:"run"`
	Message string `json:"message"`
}

// Run submits the request and decodes stdout/stderr. Timeouts,
// transport errors, non-2xx statuses, and undecodable bodies all come
// back as errors.
func (p *Piston) Run(ctx context.Context, req Request) (Result, error) {
	if req.Version == "" {
		req.Version = "*"
	}
	body, _ := json.Marshal(pistonReq{
		Language: req.Language,
		Version:  req.Version,
		Files:    []pistonFile{{Content: req.Code}},
		Stdin:    req.Stdin,
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+"/execute", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("execute: %w", err)
	}
	defer resp.Body.Close()

	var out pistonResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("execute: decode: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Message != "" {
			return Result{}, fmt.Errorf("execute: %s", out.Message)
		}
		return Result{}, fmt.Errorf("execute: status %d", resp.StatusCode)
	}

	p.log.Debug("exec.run", "language", req.Language, "stdout", len(out.Run.Stdout), "stderr", len(out.Run.Stderr))
	return Result{Stdout: out.Run.Stdout, Stderr: out.Run.Stderr}, nil
}

// Runtimes lists the languages the service can execute.
func (p *Piston) Runtimes(ctx context.Context) ([]Runtime, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+"/runtimes", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("runtimes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("runtimes: status %d", resp.StatusCode)
	}
	var rts []Runtime
	if err := json.NewDecoder(resp.Body).Decode(&rts); err != nil {
		return nil, fmt.Errorf("runtimes: decode: %w", err)
	}
	return rts, nil
}
