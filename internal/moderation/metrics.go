package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var postsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "blog_posts_created_total",
	Help: "Number of posts created, by moderation result",
}, []string{"blocked"})

var commentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "blog_comments_created_total",
	Help: "Number of user comments created, by moderation result",
}, []string{"blocked"})

var autoReplies = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "blog_auto_replies_total",
	Help: "Auto-reply attempts by outcome",
}, []string{"outcome"})

func blockedLabel(blocked bool) string {
	if blocked {
		return "true"
	}
	return "false"
}
