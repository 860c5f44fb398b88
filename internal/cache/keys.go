package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix    = "user:%d"
	SnippetKeyPrefix = "snippet:%d"
)

const (
	UserTTL    = 5 * time.Minute
	SnippetTTL = 10 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func SnippetKey(snippetID uint) string {
	return fmt.Sprintf(SnippetKeyPrefix, snippetID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateSnippet(ctx context.Context, snippetID uint) {
	Invalidate(ctx, SnippetKey(snippetID))
}
