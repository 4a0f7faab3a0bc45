package interfaces

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	OperatorOr  = "or"
	OperatorAnd = "and"

	// UserAddressParam is substituted with the caller's recovered address.
	UserAddressParam = ":userAddress"

	DefaultChain = "ethereum"
)

// ReturnValueTest compares the evaluated parameter against Value.
type ReturnValueTest struct {
	Comparator string `json:"comparator"`
	Value      string `json:"value"`
}

// AccessCondition is a single access-control condition. The only supported form
// is the wallet identity test: empty contract fields, parameters [":userAddress"]
// and an "=" comparison against an address.
type AccessCondition struct {
	ContractAddress      string          `json:"contractAddress"`
	StandardContractType string          `json:"standardContractType"`
	Chain                string          `json:"chain"`
	Method               string          `json:"method"`
	Parameters           []string        `json:"parameters"`
	ReturnValueTest      ReturnValueTest `json:"returnValueTest"`
}

// NewIdentityCondition returns the condition satisfied only by addr.
func NewIdentityCondition(addr Identity) AccessCondition {
	return AccessCondition{
		Chain:      DefaultChain,
		Parameters: []string{UserAddressParam},
		ReturnValueTest: ReturnValueTest{
			Comparator: "=",
			Value:      IdentityTag(addr),
		},
	}
}

func (c *AccessCondition) validate() error {
	if c.ContractAddress != "" || c.StandardContractType != "" || c.Method != "" {
		return fmt.Errorf("%w: contract conditions are not supported", ErrInvalidPredicate)
	}
	if c.Chain == "" {
		return fmt.Errorf("%w: missing chain", ErrInvalidPredicate)
	}
	if len(c.Parameters) != 1 || c.Parameters[0] != UserAddressParam {
		return fmt.Errorf("%w: unsupported parameters %v", ErrInvalidPredicate, c.Parameters)
	}
	if c.ReturnValueTest.Comparator != "=" {
		return fmt.Errorf("%w: unsupported comparator %q", ErrInvalidPredicate, c.ReturnValueTest.Comparator)
	}
	if !common.IsHexAddress(c.ReturnValueTest.Value) {
		return fmt.Errorf("%w: invalid address %q", ErrInvalidPredicate, c.ReturnValueTest.Value)
	}
	return nil
}

func (c *AccessCondition) satisfied(addr Identity) bool {
	return strings.EqualFold(c.ReturnValueTest.Value, addr.Hex())
}

// PredicateEntry is either a condition or a boolean operator joining the
// neighbouring conditions.
type PredicateEntry struct {
	Operator  string
	Condition *AccessCondition
}

func (e PredicateEntry) MarshalJSON() ([]byte, error) {
	if e.Condition == nil {
		return json.Marshal(struct {
			Operator string `json:"operator"`
		}{e.Operator})
	}
	return json.Marshal(e.Condition)
}

func (e *PredicateEntry) UnmarshalJSON(data []byte) error {
	var head struct {
		Operator string `json:"operator"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	if head.Operator != "" {
		*e = PredicateEntry{Operator: head.Operator}
		return nil
	}

	var cond AccessCondition
	if err := json.Unmarshal(data, &cond); err != nil {
		return err
	}
	*e = PredicateEntry{Condition: &cond}
	return nil
}

// Predicate is an ordered list of conditions separated by operators, evaluated
// left to right.
type Predicate []PredicateEntry

// ParsePredicate decodes and validates a predicate descriptor.
func ParsePredicate(descriptor string) (Predicate, error) {
	var p Predicate
	if err := json.Unmarshal([]byte(descriptor), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the predicate alternates supported conditions and operators.
func (p Predicate) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty predicate", ErrInvalidPredicate)
	}
	if len(p)%2 == 0 {
		return fmt.Errorf("%w: predicate ends with an operator", ErrInvalidPredicate)
	}

	for i, entry := range p {
		if i%2 == 1 {
			if entry.Condition != nil || (entry.Operator != OperatorOr && entry.Operator != OperatorAnd) {
				return fmt.Errorf("%w: expected operator at position %d", ErrInvalidPredicate, i)
			}
			continue
		}
		if entry.Condition == nil {
			return fmt.Errorf("%w: expected condition at position %d", ErrInvalidPredicate, i)
		}
		if err := entry.Condition.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Satisfied evaluates the predicate for addr. Invalid predicates are never satisfied.
func (p Predicate) Satisfied(addr Identity) bool {
	if p.Validate() != nil {
		return false
	}

	result := p[0].Condition.satisfied(addr)
	for i := 1; i < len(p); i += 2 {
		next := p[i+1].Condition.satisfied(addr)
		if p[i].Operator == OperatorAnd {
			result = result && next
		} else {
			result = result || next
		}
	}
	return result
}

// Descriptor returns the canonical JSON form stored alongside encrypted data.
func (p Predicate) Descriptor() string {
	out, err := json.Marshal(p)
	if err != nil {
		// entries only contain strings
		panic(fmt.Sprintf("marshal predicate: %v", err))
	}
	return string(out)
}

// Hash binds escrowed key shares to the exact predicate.
func (p Predicate) Hash() common.Hash {
	return crypto.Keccak256Hash([]byte(p.Descriptor()))
}

// Addresses returns the addresses referenced by conditions in order.
func (p Predicate) Addresses() []Identity {
	var addrs []Identity
	for _, entry := range p {
		if entry.Condition != nil && common.IsHexAddress(entry.Condition.ReturnValueTest.Value) {
			addrs = append(addrs, common.HexToAddress(entry.Condition.ReturnValueTest.Value))
		}
	}
	return addrs
}
