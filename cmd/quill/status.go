// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/quillcms/quill/internal/config"
)

// HostStatus holds the probed state of a running host.
type HostStatus struct {
	Addr    string `json:"addr"`
	Running bool   `json:"running"`
	Ready   bool   `json:"ready"`
	Error   string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	addr       string
	jsonOutput bool
	timeout    time.Duration
}

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running Quill host",
		Long:  `Probe a running host's health endpoints and report liveness and readiness.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "addr", config.DefaultMetricsAddr, "host metrics/health address")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "probe timeout")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	status := queryHostStatus(ctx, cfg.addr)

	if cfg.jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ADDR\tSTATUS\tREADY\tDETAIL")
	if status.Running {
		ready := "no"
		if status.Ready {
			ready = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\trunning\t%s\t\n", status.Addr, ready)
	} else {
		detail := "not running"
		if status.Error != "" {
			detail = status.Error
		}
		_, _ = fmt.Fprintf(w, "%s\tstopped\t-\t%s\n", status.Addr, detail)
	}
	return w.Flush()
}

// queryHostStatus probes the host's health endpoints. Connection
// failures are retried with fibonacci backoff before the host is
// declared down.
func queryHostStatus(ctx context.Context, addr string) HostStatus {
	status := HostStatus{Addr: addr}
	client := &http.Client{Timeout: time.Second}

	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(50*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/healthz/liveness", nil)
		if reqErr != nil {
			return reqErr
		}
		resp, doErr := client.Do(req)
		if doErr != nil {
			return retry.RetryableError(doErr)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return retry.RetryableError(fmt.Errorf("liveness returned %d", resp.StatusCode))
		}
		return nil
	})
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Running = true

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/healthz/readiness", nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	resp, err := client.Do(req)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer func() { _ = resp.Body.Close() }()
	status.Ready = resp.StatusCode == http.StatusOK

	return status
}
