package research

import (
	"testing"
	"time"
)

func TestDefaultProfileValues(t *testing.T) {
	standard := DefaultProfile(ModeStandard)
	if standard.InitialQueryCount != 3 || standard.MaxLoops != 2 || standard.MaxConcurrentSearches != 4 {
		t.Fatalf("unexpected standard defaults: %+v", standard)
	}
	if standard.Timeout != 180*time.Second {
		t.Fatalf("unexpected standard timeout: %v", standard.Timeout)
	}

	quick := DefaultProfile(ModeQuick)
	if quick.InitialQueryCount != 1 || quick.MaxLoops != 1 {
		t.Fatalf("unexpected quick defaults: %+v", quick)
	}

	deep := DefaultProfile(ModeDeepResearch)
	if deep.InitialQueryCount != 5 || deep.MaxLoops != 4 || deep.Timeout != 600*time.Second {
		t.Fatalf("unexpected deep defaults: %+v", deep)
	}
}

func TestResolveProfileIgnoresNonPositiveOverrides(t *testing.T) {
	resolved := ResolveProfile(ModeStandard, Config{
		InitialQueryCount:     -1,
		MaxLoops:              0,
		MaxConcurrentSearches: 8,
		Timeout:               11 * time.Second,
	})

	if resolved.InitialQueryCount != 3 || resolved.MaxLoops != 2 {
		t.Fatalf("expected invalid values to keep defaults: %+v", resolved)
	}
	if resolved.MaxConcurrentSearches != 8 {
		t.Fatalf("expected concurrency override, got %d", resolved.MaxConcurrentSearches)
	}
	if resolved.Timeout != 11*time.Second {
		t.Fatalf("expected timeout override to apply, got %v", resolved.Timeout)
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]ModeProfile{
		"":              ModeStandard,
		"quick":         ModeQuick,
		" DEEP ":        ModeDeepResearch,
		"deep_research": ModeDeepResearch,
		"unknown":       ModeStandard,
	}
	for raw, want := range cases {
		if got := ParseMode(raw); got != want {
			t.Fatalf("ParseMode(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestRequestForModeKeepsExplicitValues(t *testing.T) {
	req := RequestForMode(Request{Topic: "t", MaxLoops: 7}, ModeQuick)

	if req.Topic != "t" {
		t.Fatalf("topic changed: %q", req.Topic)
	}
	if req.InitialQueryCount != 1 {
		t.Fatalf("expected quick query count, got %d", req.InitialQueryCount)
	}
	if req.MaxLoops != 7 {
		t.Fatalf("expected explicit loop bound to win, got %d", req.MaxLoops)
	}
	if req.Timeout != 60*time.Second {
		t.Fatalf("expected quick timeout, got %v", req.Timeout)
	}
}
