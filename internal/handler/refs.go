package handler

import (
	"context"
	"fmt"

	"github.com/dukerupert/punchlist/internal/store"
)

type memberRef struct {
	field string
	id    *string
}

// checkMembers verifies that every non-nil reference names a stored member,
// canonicalizing the ids in place. It returns a client-facing message for the
// first bad reference, or "" when all resolve.
func checkMembers(ctx context.Context, members *store.MemberStore, refs ...memberRef) (string, error) {
	for _, ref := range refs {
		if ref.id == nil {
			continue
		}
		id, err := parseID(*ref.id)
		if err != nil {
			return fmt.Sprintf("%s must be a valid id", ref.field), nil
		}
		*ref.id = id

		ok, err := members.Exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !ok {
			return fmt.Sprintf("%s: member not found", ref.field), nil
		}
	}
	return "", nil
}
