package projection

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/errors"
	"context"
	"fmt"

	"github.com/samber/lo"
)

// QueryEngine answers "messages visible to a requester, most recent N".
type QueryEngine struct {
	messages contract.IMessageRepository
}

func NewQueryEngine(messages contract.IMessageRepository) QueryEngine {
	return QueryEngine{messages: messages}
}

// Query returns the messages visible to requester in chronological order.
// With a limit, only the last limit visible messages are kept, still oldest first.
func (q QueryEngine) Query(ctx context.Context, requester string, limit *int) ([]domain.Message, error) {
	if limit != nil && *limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be a positive integer, got %d", errors.ErrValidation, *limit)
	}

	all, err := q.messages.QueryAll(ctx)
	if err != nil {
		return nil, err
	}

	visible := lo.Filter(all, func(m domain.Message, _ int) bool {
		return domain.IsVisible(m, requester)
	})
	if limit == nil || *limit >= len(visible) {
		return visible, nil
	}
	return visible[len(visible)-*limit:], nil
}
