// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package network

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/AleutianNexus/services/nexus/datatypes"
)

// Summarizer backfills summaries for graph nodes that have none stored.
// Implementations must be best-effort: a summarization failure leaves the
// node's summary empty, never fails the request.
type Summarizer interface {
	Summarize(ctx context.Context, content string) (string, error)
}

// OpenAISummarizerConfig configures the LLM-backed summarizer.
type OpenAISummarizerConfig struct {
	// BaseURL points at any OpenAI-compatible endpoint (a local Ollama
	// instance works). Empty uses the OpenAI default.
	BaseURL string

	// APIKey authenticates the endpoint. Local endpoints accept any value.
	APIKey string

	// Model is the completion model name.
	Model string

	// MaxContentChars truncates indexed content before prompting.
	// Default: 4000
	MaxContentChars int

	// Timeout bounds each summarization call. Default: 15s
	Timeout time.Duration

	// Logger for summarizer operations. Default: slog.Default()
	Logger *slog.Logger
}

// OpenAISummarizer produces one-paragraph summaries via an OpenAI-compatible
// chat completion endpoint.
type OpenAISummarizer struct {
	client          *openai.Client
	model           string
	maxContentChars int
	timeout         time.Duration
	logger          *slog.Logger
}

// NewOpenAISummarizer creates the LLM-backed summarizer.
func NewOpenAISummarizer(config OpenAISummarizerConfig) (*OpenAISummarizer, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("model must not be empty")
	}
	if config.MaxContentChars == 0 {
		config.MaxContentChars = 4000
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAISummarizer{
		client:          openai.NewClientWithConfig(clientConfig),
		model:           config.Model,
		maxContentChars: config.MaxContentChars,
		timeout:         config.Timeout,
		logger:          config.Logger.With(slog.String("component", "summarizer")),
	}, nil
}

// Summarize returns a short plain-text summary of content.
//
// Thread Safety: Safe for concurrent use.
func (s *OpenAISummarizer) Summarize(ctx context.Context, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}
	if len(content) > s.maxContentChars {
		content = content[:s.maxContentChars]
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Summarize the following content in one short paragraph of plain text. No headings, no lists.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: content,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// backfillSummaries fills empty node summaries from indexed content when the
// request asked for summaries and a summarizer is configured. Failures are
// logged and skipped.
func backfillSummaries(ctx context.Context, summarizer Summarizer, index Index, result *datatypes.TraversalResult, logger *slog.Logger) {
	for _, node := range result.Nodes {
		if node.Summary != "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		obj, err := index.FetchByRef(ctx, node.Ref)
		if err != nil || obj.Content == "" {
			continue
		}

		summary, err := summarizer.Summarize(ctx, obj.Content)
		if err != nil {
			logger.Debug("summary backfill failed",
				slog.String("ref", node.Ref.Key()),
				slog.String("error", err.Error()))
			continue
		}
		node.Summary = summary
	}
}
