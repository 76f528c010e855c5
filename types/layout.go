package types

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

var ErrRecordOverflow = errors.New("record exceeds reserved space")

const (
	uint64Space = 9
	boolSpace   = 1
)

// Layout computes the maximum RLP-encoded size of each persisted record for
// a given capacity. Records are encoded into buffers reserved at exactly
// that size.
type Layout struct {
	capacity      Capacity
	registrySpace int
	proposalSpace int
}

func NewLayout(c Capacity) (*Layout, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	l := &Layout{capacity: c}
	l.registrySpace = registrySpace(c)
	l.proposalSpace = proposalSpace(c)
	return l, nil
}

func (l *Layout) Capacity() Capacity {
	return l.capacity
}

func (l *Layout) RegistrySpace() int {
	return l.registrySpace
}

func (l *Layout) ProposalSpace() int {
	return l.proposalSpace
}

func (l *Layout) EncodeRegistry(r *Registry) ([]byte, error) {
	return encodeReserved(r, l.registrySpace)
}

func (l *Layout) EncodeProposal(p *Proposal) ([]byte, error) {
	return encodeReserved(p, l.proposalSpace)
}

func encodeReserved(v any, space int) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, space))
	if err := rlp.Encode(buf, v); err != nil {
		return nil, err
	}
	if buf.Len() > space {
		return nil, fmt.Errorf("%w: %d > %d", ErrRecordOverflow, buf.Len(), space)
	}
	return buf.Bytes(), nil
}

func registrySpace(c Capacity) int {
	members := listSpace(c.MaxMembers * stringSpace(AddressSize))
	return listSpace(uint64Space + stringSpace(AddressSize) + members)
}

func proposalSpace(c Capacity) int {
	option := listSpace(stringSpace(c.MaxLabelBytes) + uint64Space)
	action := listSpace(stringSpace(c.MaxTargetBytes) + stringSpace(c.MaxPayloadBytes))
	payload := uint64Space + // index
		uint64Space + // registry
		stringSpace(AddressSize) +
		stringSpace(c.MaxTitleBytes) +
		stringSpace(c.MaxBodyBytes) +
		listSpace(c.MaxOptions*option) +
		listSpace(c.MaxMembers*stringSpace(AddressSize)) +
		uint64Space + uint64Space + // window
		boolSpace +
		uintSpace(uint64(c.MaxOptions-1)) +
		boolSpace +
		action
	return listSpace(payload)
}

// uintSpace is the encoded size of the largest unsigned value <= max.
func uintSpace(max uint64) int {
	if max < 0x80 {
		return 1
	}
	return 1 + byteLen(uint64(max))
}

func stringSpace(n int) int {
	if n <= 55 {
		return 1 + n
	}
	return 1 + byteLen(uint64(n)) + n
}

func listSpace(payload int) int {
	if payload <= 55 {
		return 1 + payload
	}
	return 1 + byteLen(uint64(payload)) + payload
}

func byteLen(v uint64) (n int) {
	for ; v > 0; v >>= 8 {
		n++
	}
	return
}
