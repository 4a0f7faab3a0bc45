package accesscontrol

import (
	"fmt"

	"github.com/djvang/pdftron-sign-app/interfaces"
)

// BuildPredicate returns the predicate satisfied by any of the given signers: one
// identity condition per signer, joined with "or".
//
// Signers may be hex addresses or did:pkh DIDs. An empty list or an unparsable
// entry fails with ErrInvalidPredicate.
func BuildPredicate(signers []string) (interfaces.Predicate, error) {
	if len(signers) == 0 {
		return nil, fmt.Errorf("%w: no signers", interfaces.ErrInvalidPredicate)
	}

	addrs := make([]interfaces.Identity, 0, len(signers))
	for _, s := range signers {
		addr, err := interfaces.ParseIdentity(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", interfaces.ErrInvalidPredicate, err)
		}
		addrs = append(addrs, addr)
	}

	return PredicateForIdentities(addrs)
}

// PredicateForIdentities is BuildPredicate for already parsed identities.
func PredicateForIdentities(addrs []interfaces.Identity) (interfaces.Predicate, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: no signers", interfaces.ErrInvalidPredicate)
	}

	predicate := make(interfaces.Predicate, 0, 2*len(addrs)-1)
	for i, addr := range addrs {
		if addr == (interfaces.Identity{}) {
			return nil, fmt.Errorf("%w: zero address", interfaces.ErrInvalidPredicate)
		}
		if i > 0 {
			predicate = append(predicate, interfaces.PredicateEntry{Operator: interfaces.OperatorOr})
		}
		cond := interfaces.NewIdentityCondition(addr)
		predicate = append(predicate, interfaces.PredicateEntry{Condition: &cond})
	}
	return predicate, nil
}
