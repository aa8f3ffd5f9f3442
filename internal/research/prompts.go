package research

import (
	"fmt"
	"strings"
	"time"
)

const (
	reflectionSeparator = "\n\n---\n\n"
	answerSeparator     = "\n---\n\n"
	maxEvidenceRunes    = 6000
)

func currentDate(now time.Time) string {
	return now.Format("January 2, 2006")
}

func buildQueryWriterPrompt(topic string, count int, now time.Time) string {
	var b strings.Builder
	b.WriteString("Your goal is to generate sophisticated and diverse web search queries for an automated research tool.\n")
	b.WriteString("Instructions:\n")
	b.WriteString("- Prefer a single search query; only add another if the question asks for multiple aspects or elements and one query is not enough.\n")
	b.WriteString("- Each query should focus on one specific aspect of the original question.\n")
	b.WriteString(fmt.Sprintf("- Don't produce more than %d queries.\n", count))
	b.WriteString("- Queries should be diverse; if the topic is broad, generate more than 1 query.\n")
	b.WriteString("- Don't generate multiple similar queries, 1 is enough.\n")
	b.WriteString(fmt.Sprintf("- Query should ensure that the most current information is gathered. The current date is %s.\n", currentDate(now)))
	b.WriteString("\nFormat: respond with a JSON object with exactly these keys:\n")
	b.WriteString("- \"rationale\": brief explanation of why these queries are relevant\n")
	b.WriteString("- \"query\": a list of search queries\n")
	b.WriteString("\nContext: ")
	b.WriteString(strings.TrimSpace(topic))
	return strings.TrimSpace(b.String())
}

func buildWebSearchPrompt(topic string, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Conduct targeted searches to gather the most recent, credible information on %q and synthesize it into a verifiable text artifact.\n", strings.TrimSpace(topic)))
	b.WriteString("Instructions:\n")
	b.WriteString(fmt.Sprintf("- The current date is %s. Gather the most current information available.\n", currentDate(now)))
	b.WriteString("- Conduct multiple, diverse searches to gather comprehensive information.\n")
	b.WriteString("- Consolidate key findings while meticulously tracking the source(s) for each specific piece of information.\n")
	b.WriteString("- Only include information found in the search results; don't make up any information.\n")
	b.WriteString("\nResearch Topic:\n")
	b.WriteString(strings.TrimSpace(topic))
	return strings.TrimSpace(b.String())
}

func buildRankedSummaryPrompt(searchPrompt string, results []SearchResult) string {
	var b strings.Builder
	b.WriteString(searchPrompt)
	b.WriteString("\n\nBased on the following search results, provide a comprehensive analysis:\n\n")
	for i, result := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(fmt.Sprintf("[%d] %s\nURL: %s\nSnippet: %s", i+1, strings.TrimSpace(result.Title), result.URL, strings.TrimSpace(result.Snippet)))
	}
	b.WriteString("\n\nPlease provide your analysis with citations in the format [1], [2], etc., referencing the sources above.")
	return b.String()
}

func buildReflectionPrompt(topic string, evidence []string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("You are an expert research assistant analyzing summaries about %q.\n", strings.TrimSpace(topic)))
	b.WriteString("Instructions:\n")
	b.WriteString("- Identify knowledge gaps or areas that need deeper exploration and generate follow-up queries (1 or multiple).\n")
	b.WriteString("- If the provided summaries are sufficient to answer the user's question, don't generate follow-up queries.\n")
	b.WriteString("- If there is a knowledge gap, generate follow-up queries that would help expand understanding.\n")
	b.WriteString("- Focus on technical details, implementation specifics, or emerging trends that weren't fully covered.\n")
	b.WriteString("- Ensure each follow-up query is self-contained and includes necessary context for web search.\n")
	b.WriteString("\nFormat: respond with a JSON object with exactly these keys:\n")
	b.WriteString("- \"is_sufficient\": true or false\n")
	b.WriteString("- \"knowledge_gap\": what information is missing or needs clarification, empty if sufficient\n")
	b.WriteString("- \"follow_up_queries\": a list of specific questions to address the gap, empty if sufficient\n")
	b.WriteString("\nSummaries:\n")
	b.WriteString(joinEvidence(evidence, reflectionSeparator))
	return strings.TrimSpace(b.String())
}

func buildFollowupPrompt(topic string, evidence []string, gap string, now time.Time) string {
	var b strings.Builder
	b.WriteString(buildQueryWriterPrompt(topic, maxFollowupQueries, now))
	b.WriteString("\n\nThe research so far left this knowledge gap:\n")
	b.WriteString(strings.TrimSpace(gap))
	b.WriteString("\n\nWrite queries that close the gap without repeating what the summaries already cover.\n")
	b.WriteString("\nSummaries:\n")
	b.WriteString(joinEvidence(evidence, reflectionSeparator))
	return strings.TrimSpace(b.String())
}

func buildAnswerPrompt(topic string, evidence []string, now time.Time) string {
	var b strings.Builder
	b.WriteString("Generate a high-quality answer to the user's question based on the provided summaries.\n")
	b.WriteString("Instructions:\n")
	b.WriteString(fmt.Sprintf("- The current date is %s.\n", currentDate(now)))
	b.WriteString("- You are the final step of a multi-step research process; don't mention that you are the final step.\n")
	b.WriteString("- You have access to all the information gathered from the previous steps.\n")
	b.WriteString("- Generate a high-quality answer to the user's question based on the provided summaries and the user's question.\n")
	b.WriteString("- Keep the bracket citations such as [1] or [2] from the summaries next to the claims they support. Do not invent new ones.\n")
	b.WriteString("\nUser Context:\n")
	b.WriteString(strings.TrimSpace(topic))
	b.WriteString("\n\nSummaries:\n")
	b.WriteString(joinEvidence(evidence, answerSeparator))
	return strings.TrimSpace(b.String())
}

func joinEvidence(evidence []string, separator string) string {
	if len(evidence) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, len(evidence))
	for _, item := range evidence {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		parts = append(parts, clipRunes(trimmed, maxEvidenceRunes))
	}
	if len(parts) == 0 {
		return "(none)"
	}
	return strings.Join(parts, separator)
}
