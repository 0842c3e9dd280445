package player

import (
	"testing"
	"time"

	"github.com/chrisle/serato-connect/pkg/models"
)

func fixedManager() *StateManager {
	sm := NewStateManager()
	sm.now = func() time.Time { return time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC) }
	return sm
}

func TestApplySongs(t *testing.T) {
	sm := fixedManager()

	events, _ := sm.ApplySongs([]models.HistorySong{
		{Index: 1, Title: "Opener", Deck: 1, Played: true},
		{Index: 2, Title: "Second", Deck: 1, Played: true, Playing: true},
		{Index: 3, Title: "Other", Deck: 2, Played: true, Playing: true},
	})
	if len(events) != 2 {
		t.Fatalf("Expected 2 started events, got %d: %+v", len(events), events)
	}
	for _, ev := range events {
		if ev.Type != EventStarted {
			t.Errorf("Expected started event, got %s", ev.Type)
		}
	}

	state := sm.GetState()
	if state.Decks[1].Song == nil || state.Decks[1].Song.Title != "Second" {
		t.Errorf("Expected deck 1 to play Second, got %+v", state.Decks[1].Song)
	}
	if !state.Decks[2].IsPlaying {
		t.Error("Expected deck 2 to be playing")
	}

	t.Run("Unchanged", func(t *testing.T) {
		events, _ := sm.ApplySongs([]models.HistorySong{
			{Index: 2, Title: "Second", Deck: 1, Played: true, Playing: true},
			{Index: 3, Title: "Other", Deck: 2, Played: true, Playing: true},
		})
		if len(events) != 0 {
			t.Errorf("Expected no events, got %+v", events)
		}
	})

	t.Run("Replaced", func(t *testing.T) {
		playTime := uint32(180)
		events, _ := sm.ApplySongs([]models.HistorySong{
			{Index: 2, Title: "Second", Deck: 1, Played: true, PlayTime: &playTime},
			{Index: 3, Title: "Other", Deck: 2, Played: true, Playing: true},
			{Index: 4, Title: "Third", Deck: 1, Played: true, Playing: true},
		})
		if len(events) != 2 {
			t.Fatalf("Expected finished and started, got %+v", events)
		}
		if events[0].Type != EventFinished || events[0].Song.Title != "Second" {
			t.Errorf("Expected Second to finish, got %+v", events[0])
		}
		if events[0].Song.PlayTime == nil || *events[0].Song.PlayTime != 180 {
			t.Errorf("Expected finished song to carry play time, got %v", events[0].Song.PlayTime)
		}
		if events[1].Type != EventStarted || events[1].Song.Title != "Third" {
			t.Errorf("Expected Third to start, got %+v", events[1])
		}
	})

	t.Run("OutOfRangeDeck", func(t *testing.T) {
		events, _ := sm.ApplySongs([]models.HistorySong{
			{Index: 3, Title: "Other", Deck: 2, Played: true, Playing: true},
			{Index: 4, Title: "Third", Deck: 1, Played: true, Playing: true},
			{Index: 5, Title: "Ghost", Deck: 9, Played: true, Playing: true},
		})
		if len(events) != 0 {
			t.Errorf("Expected deck 9 to be ignored, got %+v", events)
		}
	})
}

func TestReset(t *testing.T) {
	sm := fixedManager()
	sm.ApplySongs([]models.HistorySong{{Index: 1, Deck: 3, Playing: true}})
	sm.Reset()

	for _, deck := range sm.GetState().Decks {
		if deck.Song != nil || deck.IsPlaying {
			t.Errorf("Expected deck %d cleared, got %+v", deck.Deck, deck)
		}
	}
}

func TestSubscribe(t *testing.T) {
	sm := fixedManager()
	ch := sm.Subscribe()

	sm.ApplySongs([]models.HistorySong{{Index: 1, Title: "Opener", Deck: 1, Playing: true}})

	select {
	case ev := <-ch:
		if ev.Type != EventStarted || ev.Deck != 1 {
			t.Errorf("Unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected an event")
	}

	sm.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("Expected channel to be closed after unsubscribe")
	}
}

func TestSlowSubscriberDropped(t *testing.T) {
	sm := fixedManager()
	slow := sm.Subscribe()

	total := 0
	sent := 0
	for i := uint32(1); i <= 40; i++ {
		events, dropped := sm.ApplySongs([]models.HistorySong{{Index: i, Deck: 1, Playing: true}})
		sent += len(events)
		total += dropped
	}
	if total != 1 {
		t.Fatalf("Expected the slow subscriber to be dropped once, got %d", total)
	}
	if sm.Listeners() != 0 {
		t.Errorf("Expected no listeners left, got %d", sm.Listeners())
	}

	received := 0
	for range slow {
		received++
	}
	if received == 0 || received >= sent {
		t.Errorf("Expected a partial stream before close, got %d of %d", received, sent)
	}
}
