// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianNexus/services/nexus/datatypes"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	networkDepth     int
	networkFanout    int
	networkSummaries bool
	networkJSON      bool
)

// =============================================================================
// STYLES
// =============================================================================

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7"))
	styleScore   = lipgloss.NewStyle().Foreground(lipgloss.Color("#20B9B4"))
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54"))
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("#F4D03F"))
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var networkCmd = &cobra.Command{
	Use:   "network TYPE ID",
	Short: "Build the semantic network around a knowledge object",
	Long: `Build the semantic network around a knowledge object.

TYPE is one of: idea, task, issue, message, file.

Examples:
  nexusctl network idea 42
  nexusctl network issue 1337 --depth 3 --summaries
  nexusctl network task 7 --json`,
	Args: cobra.ExactArgs(2),
	RunE: runNetwork,
}

func init() {
	networkCmd.Flags().IntVar(&networkDepth, "depth", 2, "traversal depth in hops")
	networkCmd.Flags().IntVar(&networkFanout, "fanout", 0, "max neighbors per node (0 = server default)")
	networkCmd.Flags().BoolVar(&networkSummaries, "summaries", false, "include node summaries")
	networkCmd.Flags().BoolVar(&networkJSON, "json", false, "emit raw JSON")
	rootCmd.AddCommand(networkCmd)
}

func runNetwork(cmd *cobra.Command, args []string) error {
	endpoint := fmt.Sprintf("%s/v1/network/%s/%s?depth=%d&fanout=%d&summaries=%t",
		serverURL, url.PathEscape(args[0]), url.PathEscape(args[1]),
		networkDepth, networkFanout, networkSummaries)

	slog.Debug("fetching network", "endpoint", endpoint)

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server: %s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if networkJSON {
		fmt.Println(string(body))
		return nil
	}

	var graph datatypes.NetworkGraph
	if err := json.Unmarshal(body, &graph); err != nil {
		return fmt.Errorf("decode graph: %w", err)
	}

	printGraph(&graph)
	return nil
}

func printGraph(graph *datatypes.NetworkGraph) {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		// Piped output: plain text, no ANSI noise.
		styleTitle = lipgloss.NewStyle()
		styleScore = lipgloss.NewStyle()
		styleMuted = lipgloss.NewStyle()
		styleWarning = lipgloss.NewStyle()
	}

	fmt.Println(styleTitle.Render(fmt.Sprintf("Nodes (%d)", len(graph.Nodes))))
	byHop := make(map[int][]datatypes.NetworkNode)
	maxHop := 0
	for _, n := range graph.Nodes {
		byHop[n.HopDistance] = append(byHop[n.HopDistance], n)
		if n.HopDistance > maxHop {
			maxHop = n.HopDistance
		}
	}
	for hop := 0; hop <= maxHop; hop++ {
		nodes := byHop[hop]
		sort.Slice(nodes, func(a, b int) bool { return nodes[a].ID < nodes[b].ID })
		for _, n := range nodes {
			line := fmt.Sprintf("  hop %d  %s/%s  %s", hop, n.Type, n.ID, n.Title)
			if n.State != "" {
				line += styleMuted.Render(fmt.Sprintf("  [%s]", n.State))
			}
			fmt.Println(line)
			if n.Summary != nil && *n.Summary != "" {
				fmt.Println(styleMuted.Render("         " + *n.Summary))
			}
		}
	}

	fmt.Println(styleTitle.Render(fmt.Sprintf("Edges (%d)", len(graph.Edges))))
	for _, e := range graph.Edges {
		fmt.Printf("  %s -- %s  %s\n", e.From, e.To,
			styleScore.Render(fmt.Sprintf("%.3f", e.Score)))
	}

	if graph.Truncated {
		fmt.Println(styleWarning.Render("Result truncated by work budget or cancellation."))
	}
}
