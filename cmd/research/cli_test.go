package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"deepresearch/backend/internal/config"
	"deepresearch/backend/internal/research"
)

type stubRunner struct {
	got    research.Request
	result research.Result
	err    error
}

func (s *stubRunner) Run(_ context.Context, req research.Request, onProgress func(research.Progress)) (research.Result, error) {
	s.got = req
	onProgress(research.Progress{Phase: research.PhaseSearching, Title: "Searching the web", Detail: "Running 2 searches in parallel", Loop: 1, MaxLoops: 2})
	if s.err != nil {
		return research.Result{}, s.err
	}
	result := s.result
	result.Topic = req.Topic
	return result, nil
}

func sampleResult() research.Result {
	return research.Result{
		FinalText:  "X is a thing [example.com](https://example.com/x).",
		Sources:    []research.Source{{ID: 1, Token: "[1]", Reference: "https://example.com/x", Label: "example.com"}},
		Queries:    []research.Query{{ID: 1, Text: "what is x"}, {ID: 2, Text: "x history"}},
		Loops:      1,
		StopReason: research.StopReasonSufficient,
		ElapsedMS:  42,
	}
}

func newTestApp(runner *stubRunner, cfg config.Config) (*app, *config.Config) {
	used := &config.Config{}
	a := &app{
		loadConfig: func() (config.Config, error) { return cfg, nil },
		newRunner: func(_ context.Context, c config.Config, _ *zap.Logger) (researchRunner, error) {
			*used = c
			return runner, nil
		},
		logger: zap.NewNop(),
	}
	return a, used
}

func execute(t *testing.T, a *app, args ...string) (string, string, error) {
	t.Helper()
	cmd := a.rootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestAskPrintsTextAnswerAndProgress(t *testing.T) {
	runner := &stubRunner{result: sampleResult()}
	a, _ := newTestApp(runner, config.Config{LLMProvider: "grok"})

	stdout, stderr, err := execute(t, a, "ask", "what", "is", "X", "--queries", "2", "--loops", "1")
	require.NoError(t, err)

	assert.Equal(t, "what is X", runner.got.Topic)
	assert.Equal(t, 2, runner.got.InitialQueryCount)
	assert.Equal(t, 1, runner.got.MaxLoops)
	assert.Contains(t, stdout, "X is a thing")
	assert.Contains(t, stdout, "[1] example.com - https://example.com/x")
	assert.Contains(t, stdout, "stopped: sufficient")
	assert.Contains(t, stderr, "Searching the web (loop 1/2): Running 2 searches in parallel")
}

func TestAskQuietSuppressesProgress(t *testing.T) {
	a, _ := newTestApp(&stubRunner{result: sampleResult()}, config.Config{LLMProvider: "grok"})

	_, stderr, err := execute(t, a, "ask", "X", "--quiet")
	require.NoError(t, err)
	assert.Empty(t, stderr)
}

func TestAskJSONOutput(t *testing.T) {
	a, _ := newTestApp(&stubRunner{result: sampleResult()}, config.Config{LLMProvider: "grok"})

	stdout, _, err := execute(t, a, "ask", "X", "--format", "json", "--quiet")
	require.NoError(t, err)

	var decoded renderedResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &decoded))
	assert.Equal(t, "X", decoded.Topic)
	assert.Equal(t, []string{"what is x", "x history"}, decoded.Queries)
	require.Len(t, decoded.Sources, 1)
	assert.Equal(t, "https://example.com/x", decoded.Sources[0].Reference)
}

func TestAskYAMLOutput(t *testing.T) {
	a, _ := newTestApp(&stubRunner{result: sampleResult()}, config.Config{LLMProvider: "grok"})

	stdout, _, err := execute(t, a, "ask", "X", "--format", "yaml", "--quiet")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &decoded))
	assert.Equal(t, "sufficient", decoded["stop_reason"])
	assert.Equal(t, 42, decoded["elapsed_ms"])
}

func TestAskProviderFlagResetsModels(t *testing.T) {
	runner := &stubRunner{result: sampleResult()}
	a, used := newTestApp(runner, config.Config{
		LLMProvider: "grok",
		Models:      config.RoleModels{QueryGenerator: "grok-beta", Reflection: "grok-beta", Answer: "grok-beta"},
	})

	_, _, err := execute(t, a, "ask", "X", "--provider", "OpenAI", "--quiet")
	require.NoError(t, err)

	assert.Equal(t, "openai", used.LLMProvider)
	assert.Equal(t, "gpt-4o", used.Models.Answer)
}

func TestAskModeAppliesProfile(t *testing.T) {
	runner := &stubRunner{result: sampleResult()}
	a, _ := newTestApp(runner, config.Config{LLMProvider: "grok"})

	_, _, err := execute(t, a, "ask", "X", "--mode", "deep", "--quiet")
	require.NoError(t, err)

	assert.Equal(t, 5, runner.got.InitialQueryCount)
	assert.Equal(t, 4, runner.got.MaxLoops)
}

func TestAskRejectsBadInput(t *testing.T) {
	a, _ := newTestApp(&stubRunner{result: sampleResult()}, config.Config{LLMProvider: "grok"})

	_, _, err := execute(t, a, "ask", "X", "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")

	_, _, err = execute(t, a, "ask", "X", "--provider", "claude")
	assert.ErrorContains(t, err, "not supported")

	_, _, err = execute(t, a, "ask")
	assert.Error(t, err)
}

func TestAskPropagatesRunError(t *testing.T) {
	failure := &research.GenerationError{Stage: "finalize", Err: errors.New("boom")}
	a, _ := newTestApp(&stubRunner{err: failure}, config.Config{LLMProvider: "grok"})

	_, _, err := execute(t, a, "ask", "X", "--quiet")
	assert.ErrorIs(t, err, failure)
}

func TestProvidersCommandListsAvailability(t *testing.T) {
	a, _ := newTestApp(&stubRunner{}, config.Config{LLMProvider: "grok", XAIAPIKey: "k", BraveAPIKey: "b"})

	stdout, _, err := execute(t, a, "providers")
	require.NoError(t, err)

	lines := strings.Split(stdout, "\n")
	var grokLine, openaiLine string
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "grok"):
			grokLine = line
		case strings.HasPrefix(line, "openai"):
			openaiLine = line
		}
	}
	assert.Contains(t, grokLine, "(selected)")
	assert.Contains(t, grokLine, "available")
	assert.Contains(t, openaiLine, "OPENAI_API_KEY")
	assert.Contains(t, stdout, "search apis: brave")
}

func TestProvidersCommandWithoutSearchAPIs(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, renderProviders(&out, config.Config{LLMProvider: "gemini", GeminiAPIKey: "k"}))
	assert.Contains(t, out.String(), "none configured")
}
