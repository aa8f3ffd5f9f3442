package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"deepresearch/backend/internal/research"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validFormat(format string) bool {
	switch format {
	case formatText, formatJSON, formatYAML:
		return true
	}
	return false
}

type renderedSource struct {
	ID        int    `json:"id" yaml:"id"`
	Label     string `json:"label" yaml:"label"`
	Reference string `json:"reference" yaml:"reference"`
}

type renderedResult struct {
	Topic      string           `json:"topic" yaml:"topic"`
	Answer     string           `json:"answer" yaml:"answer"`
	Sources    []renderedSource `json:"sources" yaml:"sources"`
	Queries    []string         `json:"queries" yaml:"queries"`
	Loops      int              `json:"loops" yaml:"loops"`
	StopReason string           `json:"stopReason" yaml:"stop_reason"`
	Warnings   []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	ElapsedMS  int64            `json:"elapsedMs" yaml:"elapsed_ms"`
}

func toRendered(result research.Result) renderedResult {
	out := renderedResult{
		Topic:      result.Topic,
		Answer:     result.FinalText,
		Sources:    make([]renderedSource, 0, len(result.Sources)),
		Queries:    make([]string, 0, len(result.Queries)),
		Loops:      result.Loops,
		StopReason: string(result.StopReason),
		Warnings:   result.Warnings,
		ElapsedMS:  result.ElapsedMS,
	}
	for _, source := range result.Sources {
		out.Sources = append(out.Sources, renderedSource{ID: source.ID, Label: source.Label, Reference: source.Reference})
	}
	for _, query := range result.Queries {
		out.Queries = append(out.Queries, query.Text)
	}
	return out
}

func renderResult(w io.Writer, result research.Result, format string) error {
	rendered := toRendered(result)
	switch format {
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rendered)
	case formatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(rendered); err != nil {
			return err
		}
		return encoder.Close()
	case formatText:
		return renderText(w, rendered)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func renderText(w io.Writer, result renderedResult) error {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(result.Answer))
	b.WriteString("\n")
	if len(result.Sources) > 0 {
		b.WriteString("\nSources:\n")
		for _, source := range result.Sources {
			fmt.Fprintf(&b, "  [%d] %s - %s\n", source.ID, source.Label, source.Reference)
		}
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(&b, "\nwarning: %s\n", warning)
	}
	fmt.Fprintf(&b, "\n(%d loops, %d queries, stopped: %s, %dms)\n", result.Loops, len(result.Queries), result.StopReason, result.ElapsedMS)
	_, err := io.WriteString(w, b.String())
	return err
}
