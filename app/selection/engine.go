// Package selection decides which feed items are new relative to a
// persisted watermark and computes the watermark to persist afterwards.
package selection

import (
	"time"

	"github.com/iluhasan/podcast/app/feed"
	"github.com/iluhasan/podcast/app/watermark"
)

// Result is the outcome of evaluating one item.
type Result struct {
	Suitable bool
	// Watermark is the running watermark after this item.
	Watermark time.Time
	// Published is zero when ParseErr is set.
	Published time.Time
	ParseErr  error
}

// Evaluate decides whether a single item should be downloaded.
//
// start is the watermark the run began with and is the only value the
// "strictly newer" check compares against. running is the watermark
// accumulated over earlier items; the returned Watermark is
// max(running, start, published). An unparseable publication date makes the
// item suitable and leaves the watermark untouched.
func Evaluate(start, running time.Time, retention time.Duration, now time.Time, rawPublished string) Result {
	current := watermark.Max(running, start)

	published, err := watermark.Parse(rawPublished)
	if err != nil {
		return Result{Suitable: true, Watermark: current, ParseErr: err}
	}

	cutoff := now.Add(-retention)
	return Result{
		Suitable:  !published.Before(cutoff) && published.After(start),
		Watermark: watermark.Max(current, published),
		Published: published,
	}
}

// Decision pairs an item with its evaluation.
type Decision struct {
	Item feed.Item
	Result
}

// Selection is the outcome of folding Evaluate over a whole feed.
type Selection struct {
	Decisions   []Decision
	Selected    []feed.Item
	Watermark   time.Time
	Unparseable int
}

type Engine struct {
	Retention time.Duration
	Now       func() time.Time
}

func NewEngine(retention time.Duration) *Engine {
	return &Engine{Retention: retention, Now: time.Now}
}

// Select evaluates items in feed order. now is sampled once so every item
// in a run is judged against the same retention cutoff.
func (e *Engine) Select(start time.Time, items []feed.Item) Selection {
	now := e.now()

	sel := Selection{
		Decisions: make([]Decision, 0, len(items)),
		Watermark: start,
	}

	for _, item := range items {
		res := Evaluate(start, sel.Watermark, e.Retention, now, item.PublishedRaw)
		sel.Watermark = res.Watermark
		sel.Decisions = append(sel.Decisions, Decision{Item: item, Result: res})

		if res.ParseErr != nil {
			sel.Unparseable++
		}
		if res.Suitable {
			sel.Selected = append(sel.Selected, item)
		}
	}

	return sel
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}
