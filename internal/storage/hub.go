package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MosinFAM/moderated-blog/internal/models"
)

const subscriberBuffer = 16

// commentHub fans new comments out to per-post subscribers
type commentHub struct {
	mu   sync.Mutex
	subs map[int64][]chan *models.Comment
}

func newCommentHub() *commentHub {
	return &commentHub{subs: make(map[int64][]chan *models.Comment)}
}

func (h *commentHub) subscribe(ctx context.Context, postID int64) <-chan *models.Comment {
	ch := make(chan *models.Comment, subscriberBuffer)

	h.mu.Lock()
	h.subs[postID] = append(h.subs[postID], ch)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subs[postID]
		for i, sub := range subs {
			if sub == ch {
				h.subs[postID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(h.subs[postID]) == 0 {
			delete(h.subs, postID)
		}
		close(ch)
	}()

	return ch
}

// publish never blocks: a subscriber with a full buffer misses the comment
func (h *commentHub) publish(comment models.Comment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[comment.PostID] {
		c := comment
		select {
		case ch <- &c:
		default:
			slog.Warn("dropping comment for slow subscriber", "post_id", comment.PostID, "comment_id", comment.ID)
		}
	}
}
