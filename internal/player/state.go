package player

import (
	"sync"
	"time"

	"github.com/chrisle/serato-connect/pkg/models"
)

// MaxDecks is the highest deck number a history entry can name. Deck 0 holds
// entries without a deck.
const MaxDecks = 4

// DeckState represents what one deck is currently playing
type DeckState struct {
	Deck      uint32              `json:"deck"`
	Song      *models.HistorySong `json:"song,omitempty"`
	IsPlaying bool                `json:"isPlaying"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// State represents every deck at one point in time
type State struct {
	Decks     [MaxDecks + 1]DeckState `json:"decks"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

// EventType distinguishes deck transitions
type EventType string

const (
	EventStarted  EventType = "started"
	EventFinished EventType = "finished"
)

// Event reports a song starting or finishing on a deck
type Event struct {
	Type EventType          `json:"type"`
	Deck uint32             `json:"deck"`
	Song models.HistorySong `json:"song"`
	At   time.Time          `json:"at"`
}

// StateManager tracks deck state and notifies listeners of transitions
type StateManager struct {
	state     State
	mutex     sync.RWMutex
	listeners []chan Event
	now       func() time.Time
}

// NewStateManager creates a new deck state manager
func NewStateManager() *StateManager {
	sm := &StateManager{
		listeners: make([]chan Event, 0),
		now:       time.Now,
	}
	for i := range sm.state.Decks {
		sm.state.Decks[i].Deck = uint32(i)
	}
	sm.state.UpdatedAt = sm.now()
	return sm
}

// GetState returns a copy of the current state (thread-safe)
func (sm *StateManager) GetState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	return sm.state
}

// ApplySongs reconciles deck state against the songs of the current session
// and returns the transitions it caused, plus the number of subscribers that
// were dropped because they fell behind. Songs are visited in order, so the
// newest entry per deck wins.
func (sm *StateManager) ApplySongs(songs []models.HistorySong) (events []Event, dropped int) {
	playing := map[uint32]models.HistorySong{}
	for _, s := range songs {
		if s.Deck > MaxDecks {
			continue
		}
		if s.Playing {
			playing[s.Deck] = s
		}
	}

	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	now := sm.now()
	for i := range sm.state.Decks {
		deck := &sm.state.Decks[i]
		next, ok := playing[deck.Deck]

		if deck.Song != nil && (!ok || next.Index != deck.Song.Index) {
			finished := *deck.Song
			for _, s := range songs {
				if s.Index == finished.Index {
					finished = s
					break
				}
			}
			events = append(events, Event{Type: EventFinished, Deck: deck.Deck, Song: finished, At: now})
			deck.Song = nil
			deck.IsPlaying = false
			deck.UpdatedAt = now
		}

		if ok && deck.Song == nil {
			song := next
			deck.Song = &song
			deck.IsPlaying = true
			deck.UpdatedAt = now
			events = append(events, Event{Type: EventStarted, Deck: deck.Deck, Song: song, At: now})
		}
	}

	if len(events) > 0 {
		sm.state.UpdatedAt = now
		dropped = sm.notifyListeners(events)
	}
	return events, dropped
}

// Reset clears every deck without emitting events
func (sm *StateManager) Reset() {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	now := sm.now()
	for i := range sm.state.Decks {
		sm.state.Decks[i] = DeckState{Deck: uint32(i), UpdatedAt: now}
	}
	sm.state.UpdatedAt = now
}

// Subscribe adds a listener for deck events
func (sm *StateManager) Subscribe() <-chan Event {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	ch := make(chan Event, 32)
	sm.listeners = append(sm.listeners, ch)
	return ch
}

// Unsubscribe removes a listener and closes its channel
func (sm *StateManager) Unsubscribe(ch <-chan Event) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	for i, listener := range sm.listeners {
		if listener == ch {
			close(listener)
			sm.listeners = append(sm.listeners[:i], sm.listeners[i+1:]...)
			break
		}
	}
}

// notifyListeners delivers events to every subscriber (must be called with
// lock held). A listener whose buffer is full is closed and removed; the
// number removed is returned.
func (sm *StateManager) notifyListeners(events []Event) int {
	dropped := 0
	kept := sm.listeners[:0]
	for _, listener := range sm.listeners {
		ok := true
		for _, ev := range events {
			select {
			case listener <- ev:
			default:
				ok = false
			}
			if !ok {
				break
			}
		}
		if ok {
			kept = append(kept, listener)
		} else {
			close(listener)
			dropped++
		}
	}
	sm.listeners = kept
	return dropped
}

// Listeners returns the number of current subscribers
func (sm *StateManager) Listeners() int {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	return len(sm.listeners)
}
