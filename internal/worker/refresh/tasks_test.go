package refresh

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/heredeirxs/internal/countdown"
	"github.com/hitoshi/heredeirxs/internal/model"
	"github.com/hitoshi/heredeirxs/internal/news"
	"github.com/hitoshi/heredeirxs/internal/weather"
)

type mockNewsRefresher struct {
	refreshFn func(ctx context.Context) (int, error)
}

func (m *mockNewsRefresher) Refresh(ctx context.Context) (int, error) {
	return m.refreshFn(ctx)
}

type mockCountdownRefresher struct {
	refreshFn func(ctx context.Context) (*countdown.Target, error)
}

func (m *mockCountdownRefresher) Refresh(ctx context.Context) (*countdown.Target, error) {
	return m.refreshFn(ctx)
}

type mockNextMatchFinder struct {
	match *model.Match
	err   error
}

func (m *mockNextMatchFinder) Next(ctx context.Context) (*model.Match, error) {
	return m.match, m.err
}

type mockWeatherPrefetcher struct {
	calls  []*model.Match
	report weather.Report
}

func (m *mockWeatherPrefetcher) ForMatch(ctx context.Context, match *model.Match) weather.Report {
	m.calls = append(m.calls, match)
	return m.report
}

func TestNewsTask(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"success", nil, false},
		{"backing off is not a failure", news.ErrBackingOff, false},
		{"fetch failure", errors.New("timeout"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			task := NewsTask(&mockNewsRefresher{
				refreshFn: func(ctx context.Context) (int, error) { return 3, tt.err },
			}, time.Minute, newTestLogger(&buf))

			err := task.Run(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCountdownTask_PropagatesError(t *testing.T) {
	var buf bytes.Buffer
	task := CountdownTask(&mockCountdownRefresher{
		refreshFn: func(ctx context.Context) (*countdown.Target, error) {
			return nil, errors.New("db down")
		},
	}, time.Minute, newTestLogger(&buf))

	if err := task.Run(context.Background()); err == nil {
		t.Fatal("Run() should return an error")
	}
}

func TestCountdownTask_NoUpcomingMatch(t *testing.T) {
	var buf bytes.Buffer
	task := CountdownTask(&mockCountdownRefresher{
		refreshFn: func(ctx context.Context) (*countdown.Target, error) { return nil, nil },
	}, time.Minute, newTestLogger(&buf))

	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestWeatherTask_PrefetchesNextMatch(t *testing.T) {
	var buf bytes.Buffer
	next := &model.Match{ID: "match-1", Venue: "Abanca-Balaídos", KickoffAt: time.Now().Add(48 * time.Hour)}
	prefetcher := &mockWeatherPrefetcher{}

	task := WeatherTask(&mockNextMatchFinder{match: next}, prefetcher, time.Hour, newTestLogger(&buf))
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(prefetcher.calls) != 1 || prefetcher.calls[0].ID != "match-1" {
		t.Errorf("ForMatch calls = %v", prefetcher.calls)
	}
}

func TestWeatherTask_NoNextMatch_Skips(t *testing.T) {
	var buf bytes.Buffer
	prefetcher := &mockWeatherPrefetcher{}

	task := WeatherTask(&mockNextMatchFinder{}, prefetcher, time.Hour, newTestLogger(&buf))
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(prefetcher.calls) != 0 {
		t.Errorf("ForMatch should not be called, got %d calls", len(prefetcher.calls))
	}
}

func TestWeatherTask_MatchLookupError(t *testing.T) {
	var buf bytes.Buffer
	task := WeatherTask(&mockNextMatchFinder{err: errors.New("db down")}, &mockWeatherPrefetcher{}, time.Hour, newTestLogger(&buf))
	if err := task.Run(context.Background()); err == nil {
		t.Fatal("Run() should return an error")
	}
}
