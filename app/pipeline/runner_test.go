package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/iluhasan/podcast/app/feed"
	"github.com/iluhasan/podcast/app/watermark"
)

const day = 24 * time.Hour

var testNow = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

type memoryStore struct {
	text     string
	ok       bool
	readErr  error
	writeErr error
	writes   []string
}

func (m *memoryStore) Read(ctx context.Context) (string, bool, error) {
	if m.readErr != nil {
		return "", false, m.readErr
	}
	return m.text, m.ok, nil
}

func (m *memoryStore) Write(ctx context.Context, text string) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes = append(m.writes, text)
	m.text, m.ok = text, true
	return nil
}

type stubSource struct {
	items []feed.Item
	err   error
	calls int
}

func (s *stubSource) Fetch(ctx context.Context) ([]feed.Item, error) {
	s.calls++
	return s.items, s.err
}

type recordingDownloader struct {
	failOn string
	calls  []string
}

func (d *recordingDownloader) Fetch(ctx context.Context, url, filename string) (int64, error) {
	d.calls = append(d.calls, filename)
	if url == d.failOn {
		return 0, fmt.Errorf("HTTP error: 404 Not Found")
	}
	return int64(len(url)), nil
}

func episode(guid string, published time.Time) feed.Item {
	return feed.Item{
		GUID:         guid,
		PublishedRaw: watermark.Format(published),
		EnclosureURL: "https://cdn.example.com/" + guid + ".mp3",
	}
}

// scenario feed: items at now, now-2d, now-5d
func scenarioItems() []feed.Item {
	return []feed.Item{
		episode("today", testNow),
		episode("two-days", testNow.Add(-2*day)),
		episode("five-days", testNow.Add(-5*day)),
	}
}

func newTestRunner(store *memoryStore, source *stubSource, downloader *recordingDownloader, opts ...Option) *Runner {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewRunner(Config{RetentionWindow: 4 * day, FileExtension: ".mp3"}, store, source, downloader, opts...)
}

func storeAt(t time.Time) *memoryStore {
	return &memoryStore{text: watermark.Format(t), ok: true}
}

func assertCalls(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected downloads %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected downloads %v, got %v", want, got)
		}
	}
}

func TestRunOnce_ScenarioA(t *testing.T) {
	store := storeAt(testNow.Add(-3 * day))
	downloader := &recordingDownloader{}

	report, err := newTestRunner(store, &stubSource{items: scenarioItems()}, downloader).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	assertCalls(t, downloader.calls, "today.mp3", "two-days.mp3")
	if report.State != StateCompleted {
		t.Errorf("Expected state completed, got %s", report.State)
	}
	if len(store.writes) != 1 || store.writes[0] != watermark.Format(testNow) {
		t.Errorf("Expected one write of %q, got %v", watermark.Format(testNow), store.writes)
	}
	if report.Candidates != 3 || report.Selected != 2 || len(report.Downloads) != 2 {
		t.Errorf("Expected 3 candidates, 2 selected, 2 downloads, got %+v", report)
	}
}

func TestRunOnce_ScenarioB(t *testing.T) {
	store := storeAt(testNow)
	downloader := &recordingDownloader{}

	report, err := newTestRunner(store, &stubSource{items: scenarioItems()}, downloader).RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	assertCalls(t, downloader.calls)
	if len(store.writes) != 1 || store.writes[0] != watermark.Format(testNow) {
		t.Errorf("Expected unchanged watermark to be written once, got %v", store.writes)
	}
	if !report.FinalWatermark.Equal(testNow) {
		t.Errorf("Expected final watermark %v, got %v", testNow, report.FinalWatermark)
	}
}

func TestRunOnce_ScenarioC(t *testing.T) {
	store := &memoryStore{}
	downloader := &recordingDownloader{}

	report, err := newTestRunner(store, &stubSource{items: scenarioItems()}, downloader).RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	assertCalls(t, downloader.calls, "today.mp3", "two-days.mp3")
	if !report.StartWatermark.Equal(watermark.Epoch) {
		t.Errorf("Expected start watermark epoch, got %v", report.StartWatermark)
	}
	if len(store.writes) != 1 || store.writes[0] != watermark.Format(testNow) {
		t.Errorf("Expected watermark %q, got %v", watermark.Format(testNow), store.writes)
	}
}

func TestRunOnce_ScenarioD(t *testing.T) {
	store := storeAt(testNow.Add(-3 * day))
	downloader := &recordingDownloader{}
	source := &stubSource{err: fmt.Errorf("%w: dial tcp: connection refused", feed.ErrUnavailable)}

	report, err := newTestRunner(store, source, downloader).RunOnce(context.Background())

	if !errors.Is(err, ErrFeedUnavailable) {
		t.Fatalf("Expected ErrFeedUnavailable, got: %v", err)
	}
	if report.State != StateFetchFailed {
		t.Errorf("Expected state fetch_failed, got %s", report.State)
	}
	if len(downloader.calls) != 0 {
		t.Errorf("Expected no downloads, got %v", downloader.calls)
	}
	if len(store.writes) != 0 {
		t.Errorf("Expected no watermark write, got %v", store.writes)
	}
	if report.Candidates != 0 {
		t.Errorf("Expected no items evaluated, got %d", report.Candidates)
	}
}

func TestRunOnce_MalformedFeed(t *testing.T) {
	store := &memoryStore{}
	source := &stubSource{err: fmt.Errorf("%w: failed to parse feed", feed.ErrMalformed)}

	_, err := newTestRunner(store, source, &recordingDownloader{}).RunOnce(context.Background())

	if !errors.Is(err, ErrFeedMalformed) {
		t.Errorf("Expected ErrFeedMalformed, got: %v", err)
	}
	if errors.Is(err, ErrFeedUnavailable) {
		t.Error("Expected malformed feed not to be classified as unavailable")
	}
	if len(store.writes) != 0 {
		t.Errorf("Expected no watermark write, got %v", store.writes)
	}
}

func TestRunOnce_DownloadFailureStopsRun(t *testing.T) {
	items := []feed.Item{
		episode("first", testNow.Add(-time.Hour)),
		episode("second", testNow.Add(-2*time.Hour)),
		episode("third", testNow.Add(-3*time.Hour)),
	}
	store := storeAt(testNow.Add(-day))
	downloader := &recordingDownloader{failOn: items[1].EnclosureURL}

	report, err := newTestRunner(store, &stubSource{items: items}, downloader).RunOnce(context.Background())

	if !errors.Is(err, ErrItemDownloadFailed) {
		t.Fatalf("Expected ErrItemDownloadFailed, got: %v", err)
	}
	assertCalls(t, downloader.calls, "first.mp3", "second.mp3")
	if len(store.writes) != 0 {
		t.Errorf("Expected no watermark write, got %v", store.writes)
	}
	if report.State != StateDownloadFailed {
		t.Errorf("Expected state download_failed, got %s", report.State)
	}
	if len(report.Downloads) != 1 {
		t.Errorf("Expected 1 completed download, got %d", len(report.Downloads))
	}
	if !report.FinalWatermark.Equal(report.StartWatermark) {
		t.Error("Expected final watermark to stay at the start value on failure")
	}
}

func TestRunOnce_PersistFailure(t *testing.T) {
	store := &memoryStore{writeErr: errors.New("disk full")}
	downloader := &recordingDownloader{}

	report, err := newTestRunner(store, &stubSource{items: scenarioItems()}, downloader).RunOnce(context.Background())

	if !errors.Is(err, ErrWatermarkPersistFailed) {
		t.Fatalf("Expected ErrWatermarkPersistFailed, got: %v", err)
	}
	if report.State != StatePersistFailed {
		t.Errorf("Expected state persist_failed, got %s", report.State)
	}
	if len(downloader.calls) != 2 {
		t.Errorf("Expected downloads to have happened before the write, got %v", downloader.calls)
	}
}

func TestRunOnce_UnparseableItemsFailOpen(t *testing.T) {
	items := []feed.Item{
		{GUID: "mystery", PublishedRaw: "sometime last week", EnclosureURL: "https://cdn.example.com/mystery.mp3"},
		episode("old", testNow.Add(-2*day)),
	}
	store := storeAt(testNow.Add(-day))
	downloader := &recordingDownloader{}

	report, err := newTestRunner(store, &stubSource{items: items}, downloader).RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	assertCalls(t, downloader.calls, "mystery.mp3")
	if report.Unparseable != 1 {
		t.Errorf("Expected 1 unparseable item, got %d", report.Unparseable)
	}
	if store.writes[0] != watermark.Format(testNow.Add(-day)) {
		t.Errorf("Expected watermark to stay at the start value, got %q", store.writes[0])
	}
	if !report.Downloads[0].Published.IsZero() {
		t.Error("Expected zero publication time for unparseable item")
	}
}

func TestRunOnce_CorruptWatermarkFallsBackToEpoch(t *testing.T) {
	store := &memoryStore{text: "corrupted!!", ok: true}
	downloader := &recordingDownloader{}

	report, err := newTestRunner(store, &stubSource{items: scenarioItems()}, downloader).RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !report.StartWatermark.Equal(watermark.Epoch) {
		t.Errorf("Expected epoch start, got %v", report.StartWatermark)
	}
	assertCalls(t, downloader.calls, "today.mp3", "two-days.mp3")
}

func TestRunOnce_StoreReadFailureAborts(t *testing.T) {
	store := &memoryStore{readErr: errors.New("permission denied")}
	source := &stubSource{items: scenarioItems()}

	report, err := newTestRunner(store, source, &recordingDownloader{}).RunOnce(context.Background())

	if !errors.Is(err, ErrWatermarkUnavailable) {
		t.Fatalf("Expected ErrWatermarkUnavailable, got: %v", err)
	}
	if source.calls != 0 {
		t.Error("Expected feed not to be fetched")
	}
	if report.State != StateAborted {
		t.Errorf("Expected state aborted, got %s", report.State)
	}
}

func TestRunOnce_MonotonicWhenFeedIsOlder(t *testing.T) {
	start := testNow.Add(-time.Hour)
	store := storeAt(start)

	_, err := newTestRunner(store, &stubSource{items: []feed.Item{episode("old", testNow.Add(-3*day))}}, &recordingDownloader{}).RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if store.writes[0] != watermark.Format(start) {
		t.Errorf("Expected watermark never to move backwards, got %q", store.writes[0])
	}
}

func TestRunOnce_AdvancesPastRejectedItems(t *testing.T) {
	// the newest item is outside retention for downloading but still the
	// newest observed, so it becomes the next baseline
	store := storeAt(testNow.Add(-10 * day))
	runner := NewRunner(Config{RetentionWindow: 0}, store,
		&stubSource{items: []feed.Item{episode("recent", testNow.Add(-time.Hour))}}, &recordingDownloader{},
		WithClock(func() time.Time { return testNow }))

	report, err := runner.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if report.Selected != 0 {
		t.Errorf("Expected nothing selected with zero retention, got %d", report.Selected)
	}
	if store.writes[0] != watermark.Format(testNow.Add(-time.Hour)) {
		t.Errorf("Expected watermark to advance to the observed item, got %q", store.writes[0])
	}
}

func TestRunOnce_Idempotent(t *testing.T) {
	store := &memoryStore{}
	source := &stubSource{items: scenarioItems()}

	if _, err := newTestRunner(store, source, &recordingDownloader{}).RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	downloader := &recordingDownloader{}
	if _, err := newTestRunner(store, source, downloader).RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	assertCalls(t, downloader.calls)
	if len(store.writes) != 2 || store.writes[0] != store.writes[1] {
		t.Errorf("Expected identical watermark on the second run, got %v", store.writes)
	}
}

func TestRunOnce_CancelledBeforeDownloads(t *testing.T) {
	store := storeAt(testNow.Add(-3 * day))
	downloader := &recordingDownloader{}
	ctx, cancel := context.WithCancel(context.Background())

	source := &cancellingSource{items: scenarioItems(), cancel: cancel}
	runner := NewRunner(Config{RetentionWindow: 4 * day}, store, source, downloader,
		WithClock(func() time.Time { return testNow }))

	_, err := runner.RunOnce(ctx)

	if !errors.Is(err, ErrItemDownloadFailed) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected cancelled download error, got: %v", err)
	}
	if len(downloader.calls) != 0 {
		t.Errorf("Expected no downloads after cancellation, got %v", downloader.calls)
	}
	if len(store.writes) != 0 {
		t.Errorf("Expected no watermark write, got %v", store.writes)
	}
}

type cancellingSource struct {
	items  []feed.Item
	cancel context.CancelFunc
}

func (s *cancellingSource) Fetch(ctx context.Context) ([]feed.Item, error) {
	s.cancel()
	return s.items, nil
}

type stubLocker struct {
	err      error
	locked   int
	unlocked int
}

func (l *stubLocker) Lock(ctx context.Context) (func() error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locked++
	return func() error {
		l.unlocked++
		return nil
	}, nil
}

func TestRunOnce_HoldsLockForWholeRun(t *testing.T) {
	locker := &stubLocker{}
	store := &memoryStore{}

	if _, err := newTestRunner(store, &stubSource{items: scenarioItems()}, &recordingDownloader{}, WithLocker(locker)).RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	if locker.locked != 1 || locker.unlocked != 1 {
		t.Errorf("Expected one lock and one unlock, got %d/%d", locker.locked, locker.unlocked)
	}
}

func TestRunOnce_LockFailureAborts(t *testing.T) {
	locker := &stubLocker{err: errors.New("held by pid 42")}
	store := &memoryStore{}
	source := &stubSource{items: scenarioItems()}

	_, err := newTestRunner(store, source, &recordingDownloader{}, WithLocker(locker)).RunOnce(context.Background())

	if !errors.Is(err, ErrRunLocked) {
		t.Fatalf("Expected ErrRunLocked, got: %v", err)
	}
	if source.calls != 0 || len(store.writes) != 0 {
		t.Error("Expected nothing to happen without the lock")
	}
}

func TestStateTerminal(t *testing.T) {
	terminal := []State{StateFetchFailed, StateDownloadFailed, StatePersistFailed, StateAborted, StateCompleted}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
	}
	for _, s := range []State{StateIdle, StateFetchingFeed, StateEvaluating, StateDownloading} {
		if s.Terminal() {
			t.Errorf("Expected %s not to be terminal", s)
		}
	}
}

func TestRunOnce_ItemsWithoutEnclosureAdvanceWatermark(t *testing.T) {
	notes := episode("notes", testNow.Add(-time.Hour))
	notes.EnclosureURL = ""
	items := []feed.Item{notes, episode("older", testNow.Add(-2*time.Hour))}
	store := storeAt(testNow.Add(-day))
	downloader := &recordingDownloader{}

	report, err := newTestRunner(store, &stubSource{items: items}, downloader).RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	assertCalls(t, downloader.calls, "older.mp3")
	if report.Candidates != 2 || report.Selected != 1 {
		t.Errorf("Expected 2 candidates and 1 selected, got %d and %d", report.Candidates, report.Selected)
	}
	if store.writes[0] != watermark.Format(testNow.Add(-time.Hour)) {
		t.Errorf("Expected watermark from the item without enclosure, got %q", store.writes[0])
	}
}
