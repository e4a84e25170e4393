// ABOUTME: Pending interactive questions awaiting a browser's answer.
// ABOUTME: Connection cleanup cancels every question the browser still owes.

package interact

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrQuestionCancelled indicates the question was cancelled before an
// answer arrived, usually because the browser disconnected.
var ErrQuestionCancelled = errors.New("question cancelled")

// ErrUnknownQuestion indicates an answer for a question that no longer
// exists.
var ErrUnknownQuestion = errors.New("unknown question")

// pendingQuestion is one question awaiting an answer.
type pendingQuestion struct {
	browserID string
	answer    chan string
	cancel    chan struct{}
	once      sync.Once
}

// QuestionBroker tracks questions the agent has asked a browser and the
// futures waiting on their answers.
type QuestionBroker struct {
	mu      sync.Mutex
	pending map[string]*pendingQuestion
}

// NewQuestionBroker creates an empty broker.
func NewQuestionBroker() *QuestionBroker {
	return &QuestionBroker{pending: make(map[string]*pendingQuestion)}
}

// Ask registers a question for a browser and blocks until an answer
// arrives, the question is cancelled, or ctx expires. It returns the
// question ID via the prompt callback so the caller can forward it to
// the browser before blocking.
func (b *QuestionBroker) Ask(ctx context.Context, browserID string, prompt func(questionID string)) (string, error) {
	q := &pendingQuestion{
		browserID: browserID,
		answer:    make(chan string, 1),
		cancel:    make(chan struct{}),
	}
	id := uuid.New().String()

	b.mu.Lock()
	b.pending[id] = q
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	if prompt != nil {
		prompt(id)
	}

	select {
	case ans := <-q.answer:
		return ans, nil
	case <-q.cancel:
		return "", ErrQuestionCancelled
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Answer delivers the browser's answer to the waiting future.
func (b *QuestionBroker) Answer(questionID, answer string) error {
	b.mu.Lock()
	q, ok := b.pending[questionID]
	b.mu.Unlock()

	if !ok {
		return ErrUnknownQuestion
	}
	select {
	case q.answer <- answer:
		return nil
	default:
		return ErrUnknownQuestion
	}
}

// CancelAll cancels every pending question owned by a browser. Called
// from connection cleanup; waiting futures fail with
// ErrQuestionCancelled.
func (b *QuestionBroker) CancelAll(browserID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, q := range b.pending {
		if q.browserID == browserID {
			q.once.Do(func() { close(q.cancel) })
			n++
		}
	}
	return n
}

// Pending returns the number of unanswered questions across all browsers.
func (b *QuestionBroker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
