package socket

import "sync"

// Journal is an append-only log of lifecycle events. Every subscriber replays
// the full history from the first event before streaming live ones, so late
// subscribers (diagnostics, tests) observe the same sequence as the driver.
type Journal struct {
	mu     sync.Mutex
	cond   *sync.Cond
	events []Event
	done   bool
}

func NewJournal() *Journal {
	j := &Journal{}
	j.cond = sync.NewCond(&j.mu)
	return j
}

// Append records ev and wakes subscribers. Events appended after Complete are
// dropped; completion is terminal.
func (j *Journal) Append(ev Event) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done {
		return false
	}
	j.events = append(j.events, ev)
	j.cond.Broadcast()
	return true
}

// Complete marks the journal terminal. Safe to call more than once.
func (j *Journal) Complete() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done {
		return
	}
	j.done = true
	j.cond.Broadcast()
}

func (j *Journal) Done() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.done
}

// History returns a snapshot of every event appended so far.
func (j *Journal) History() []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Event, len(j.events))
	copy(out, j.events)
	return out
}

// Subscribe returns a channel that yields the full history from the start,
// then live events as they are appended. The channel closes once the journal
// is complete and every recorded event has been delivered.
func (j *Journal) Subscribe() <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		idx := 0
		for {
			j.mu.Lock()
			for idx >= len(j.events) && !j.done {
				j.cond.Wait()
			}
			if idx >= len(j.events) {
				j.mu.Unlock()
				return
			}
			ev := j.events[idx]
			idx++
			j.mu.Unlock()
			ch <- ev
		}
	}()
	return ch
}
