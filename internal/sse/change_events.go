package sse

import (
	"context"
	"sync"
	"time"
)

// ChangeEvent tells admin clients that rows of one entity changed and a
// re-fetch is due. It is a refresh hint only, never a correctness
// dependency: the read endpoints return the same data with or without it.
type ChangeEvent struct {
	Entity   string    `json:"entity"` // orders | order_lines | payments | tables
	Action   string    `json:"action"` // created | updated | settled
	EntityID string    `json:"entity_id"`
	BranchID string    `json:"branch_id"`
	At       time.Time `json:"at"`
}

// ChangeEmitter broadcasts change events to the SSE subscribers of a branch.
type ChangeEmitter struct {
	clients map[string][]chan ChangeEvent
	mu      sync.RWMutex
}

func NewChangeEmitter() *ChangeEmitter {
	return &ChangeEmitter{
		clients: make(map[string][]chan ChangeEvent),
	}
}

// Subscribe adds a client to one branch's change feed. The channel closes
// when the context is done.
func (e *ChangeEmitter) Subscribe(ctx context.Context, branchID string) chan ChangeEvent {
	clientChan := make(chan ChangeEvent, 10)

	e.mu.Lock()
	e.clients[branchID] = append(e.clients[branchID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(branchID, clientChan)
	}()

	return clientChan
}

// Emit broadcasts one change to every subscriber of the branch. Slow
// clients are skipped rather than blocking the mutation path.
func (e *ChangeEmitter) Emit(event ChangeEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, clientChan := range e.clients[event.BranchID] {
		select {
		case clientChan <- event:
		default:
		}
	}
}

func (e *ChangeEmitter) remove(branchID string, clientChan chan ChangeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	chans := e.clients[branchID]
	for i, c := range chans {
		if c == clientChan {
			e.clients[branchID] = append(chans[:i], chans[i+1:]...)
			close(c)
			break
		}
	}
	if len(e.clients[branchID]) == 0 {
		delete(e.clients, branchID)
	}
}

// SubscriberCount reports how many clients listen on a branch.
func (e *ChangeEmitter) SubscriberCount(branchID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[branchID])
}
