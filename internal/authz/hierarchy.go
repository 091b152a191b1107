package authz

import (
	"context"
	"fmt"
)

// DefaultMaxChainDepth bounds the reporting-chain walk when no explicit
// depth is configured.
const DefaultMaxChainDepth = 10

// ReportingChain resolves one hop of the manager hierarchy. An empty manager
// id means the employee reports to nobody.
type ReportingChain interface {
	ManagerOf(ctx context.Context, employeeID string) (string, error)
}

// IsManagerOf walks the reporting chain upward from ownerID looking for
// principalID. The walk is iterative with a visited set, so a corrupted
// chain containing a cycle terminates with no match instead of hanging; the
// depth bound is a second guard, not the correctness mechanism.
func IsManagerOf(ctx context.Context, chain ReportingChain, principalID, ownerID string, maxDepth int) (bool, error) {
	if chain == nil || principalID == "" || ownerID == "" || principalID == ownerID {
		return false, nil
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxChainDepth
	}
	visited := map[string]struct{}{ownerID: {}}
	current := ownerID
	for depth := 0; depth < maxDepth; depth++ {
		manager, err := chain.ManagerOf(ctx, current)
		if err != nil {
			return false, fmt.Errorf("authz: walk reporting chain: %w", err)
		}
		if manager == "" {
			return false, nil
		}
		if manager == principalID {
			return true, nil
		}
		if _, seen := visited[manager]; seen {
			return false, nil
		}
		visited[manager] = struct{}{}
		current = manager
	}
	return false, nil
}
