package models

import "testing"

func TestCanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to TrackStatus
		want     bool
	}{
		{StatusQueued, StatusPlaying, true},
		{StatusQueued, StatusPlayed, false},
		{StatusQueued, StatusSkipped, false},
		{StatusPlaying, StatusPlayed, true},
		{StatusPlaying, StatusSkipped, true},
		{StatusPlaying, StatusQueued, false},
		{StatusPlayed, StatusPlaying, false},
		{StatusPlayed, StatusQueued, false},
		{StatusSkipped, StatusPlaying, false},
		{StatusSkipped, StatusPlayed, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	if StatusQueued.Terminal() || StatusPlaying.Terminal() {
		t.Error("QUEUED and PLAYING must not be terminal")
	}
	if !StatusPlayed.Terminal() || !StatusSkipped.Terminal() {
		t.Error("PLAYED and SKIPPED must be terminal")
	}
}

func TestDeltaFor(t *testing.T) {
	cases := []struct {
		name               string
		current, requested Direction
		want               StatsDelta
	}{
		{"neutral to like", DirectionNeutral, DirectionLike, StatsDelta{Like: 1}},
		{"neutral to dislike", DirectionNeutral, DirectionDislike, StatsDelta{Dislike: 1}},
		{"like to dislike", DirectionLike, DirectionDislike, StatsDelta{Like: -1, Dislike: 1}},
		{"dislike to like", DirectionDislike, DirectionLike, StatsDelta{Like: 1, Dislike: -1}},
		{"like to neutral", DirectionLike, DirectionNeutral, StatsDelta{Like: -1}},
		{"dislike to neutral", DirectionDislike, DirectionNeutral, StatsDelta{Dislike: -1}},
		{"like to like", DirectionLike, DirectionLike, StatsDelta{}},
		{"neutral to neutral", DirectionNeutral, DirectionNeutral, StatsDelta{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeltaFor(tc.current, tc.requested); got != tc.want {
				t.Errorf("DeltaFor(%s, %s) = %+v, want %+v", tc.current, tc.requested, got, tc.want)
			}
		})
	}
}

func TestDeltaInverse(t *testing.T) {
	delta := StatsDelta{Like: 1, Dislike: -1}
	inv := delta.Inverse()
	if inv.Like != -1 || inv.Dislike != 1 {
		t.Errorf("Inverse() = %+v", inv)
	}
	if delta.IsZero() {
		t.Error("non-zero delta must not report IsZero")
	}
	if !(StatsDelta{}).IsZero() {
		t.Error("zero delta must report IsZero")
	}
}

func TestElapsedMs(t *testing.T) {
	state := PlaybackState{StartedAtMs: 1000, TrackDurationMs: 180000}
	if got := state.ElapsedMs(31000); got != 30000 {
		t.Errorf("ElapsedMs = %d, want 30000", got)
	}
}

func TestQueueItemTrack(t *testing.T) {
	item := QueueItem{
		SourceID:   "src-1",
		SourceURI:  "source:track:src-1",
		Name:       "Song",
		Artist:     "Artist",
		Album:      "Album",
		DurationMs: 200000,
	}
	track := item.Track()
	if track.SourceID != "src-1" || track.DurationMs != 200000 || track.Name != "Song" {
		t.Errorf("Track() = %+v", track)
	}
}
