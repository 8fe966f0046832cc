package api

import (
	"context"
	"fmt"
)

// FriendsPager is the slice of RemoteFoodService the paginator needs.
type FriendsPager interface {
	GetFriends(ctx context.Context, offset, limit int) (FriendsPage, error)
}

// Friends pages through GetFriends until the reported total is reached or a
// page comes back empty. maxResults <= 0 means no cap.
func Friends(ctx context.Context, svc FriendsPager, pageSize, maxResults int) ([]Friend, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", pageSize)
	}

	out := make([]Friend, 0)
	offset := 0
	for {
		page, err := svc.GetFriends(ctx, offset, pageSize)
		if err != nil {
			return out, fmt.Errorf("get friends at offset %d: %w", offset, err)
		}
		if len(page.Friends) == 0 {
			return out, nil
		}
		for _, f := range page.Friends {
			if maxResults > 0 && len(out) >= maxResults {
				return out, nil
			}
			out = append(out, f)
		}
		offset += len(page.Friends)
		if offset >= page.Total {
			return out, nil
		}
	}
}
