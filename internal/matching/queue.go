package matching

import "sync"

// Queue is the local feed of cards waiting for a like or skip decision.
type Queue struct {
	mu    sync.Mutex
	cards []Card
}

func NewQueue(cards []Card) *Queue {
	q := &Queue{}
	q.Reset(cards)
	return q
}

// Reset replaces the queue content with a copy of cards.
func (q *Queue) Reset(cards []Card) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cards = append([]Card(nil), cards...)
}

// Current returns the card on top of the queue.
func (q *Queue) Current() (Card, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.cards) == 0 {
		return Card{}, false
	}
	return q.cards[0], true
}

// Remove drops the card of userID wherever it sits in the queue.
func (q *Queue) Remove(userID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, c := range q.cards {
		if c.UserID == userID {
			q.cards = append(q.cards[:i:i], q.cards[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.cards)
}
