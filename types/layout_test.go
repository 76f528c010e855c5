package types

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"
)

func fill(n int) string {
	return strings.Repeat("\xff", n)
}

func fillAddress(b byte) Address {
	return Address(bytes.Repeat([]byte{b}, AddressSize))
}

func maxRegistry(c Capacity) *Registry {
	r := &Registry{
		Index:   math.MaxUint64,
		Creator: fillAddress(0xff),
	}
	for i := 0; i < c.MaxMembers; i++ {
		r.Members = append(r.Members, fillAddress(0xff))
	}
	return r
}

func maxProposal(c Capacity) *Proposal {
	p := &Proposal{
		Index:       math.MaxUint64,
		Registry:    math.MaxUint64,
		Proposer:    fillAddress(0xff),
		Title:       fill(c.MaxTitleBytes),
		Body:        fill(c.MaxBodyBytes),
		WindowStart: math.MaxUint64,
		WindowEnd:   math.MaxUint64,
		Finalized:   true,
		Winner:      uint32(c.MaxOptions - 1),
		Executed:    true,
		Action: ExternalAction{
			Target:  fill(c.MaxTargetBytes),
			Payload: []byte(fill(c.MaxPayloadBytes)),
		},
	}
	for i := 0; i < c.MaxOptions; i++ {
		p.Options = append(p.Options, ProposalOption{Label: fill(c.MaxLabelBytes), Tally: math.MaxUint64})
	}
	for i := 0; i < c.MaxMembers; i++ {
		p.Ballots = append(p.Ballots, fillAddress(0xff))
	}
	return p
}

func TestLayoutExactSpace(t *testing.T) {
	tests := map[string]Capacity{
		"default": DefaultCapacity(),
		"tiny": {
			MaxTitleBytes:   2,
			MaxBodyBytes:    3,
			MaxLabelBytes:   4,
			MaxOptions:      1,
			MaxMembers:      1,
			MaxTargetBytes:  5,
			MaxPayloadBytes: 6,
			MaxCapabilities: 1,
		},
		"wide winner index": {
			MaxTitleBytes:   60,
			MaxBodyBytes:    300,
			MaxLabelBytes:   56,
			MaxOptions:      200,
			MaxMembers:      3,
			MaxTargetBytes:  55,
			MaxPayloadBytes: 1024,
			MaxCapabilities: 4,
		},
	}
	for name, c := range tests {
		t.Run(name, func(t *testing.T) {
			l, err := NewLayout(c)
			require.NoError(t, err)

			dat, err := l.EncodeRegistry(maxRegistry(c))
			require.NoError(t, err)
			require.Len(t, dat, l.RegistrySpace())

			dat, err = l.EncodeProposal(maxProposal(c))
			require.NoError(t, err)
			require.Len(t, dat, l.ProposalSpace())
		})
	}
}

func TestLayoutRoundTrip(t *testing.T) {
	l, err := NewLayout(DefaultCapacity())
	require.NoError(t, err)

	p := maxProposal(DefaultCapacity())
	dat, err := l.EncodeProposal(p)
	require.NoError(t, err)
	var decoded Proposal
	require.NoError(t, rlp.DecodeBytes(dat, &decoded))
	require.Equal(t, p, &decoded)
}

func TestLayoutOverflow(t *testing.T) {
	c := DefaultCapacity()
	l, err := NewLayout(c)
	require.NoError(t, err)

	p := maxProposal(c)
	p.Title = fill(c.MaxTitleBytes + 1)
	_, err = l.EncodeProposal(p)
	require.ErrorIs(t, err, ErrRecordOverflow)

	r := maxRegistry(c)
	r.Members = append(r.Members, fillAddress(1))
	_, err = l.EncodeRegistry(r)
	require.ErrorIs(t, err, ErrRecordOverflow)
}

func TestNewLayoutInvalidCapacity(t *testing.T) {
	c := DefaultCapacity()
	c.MaxOptions = 0
	_, err := NewLayout(c)
	require.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestStringSpace(t *testing.T) {
	tests := map[string]struct {
		n        int
		expected int
	}{
		"empty":        {n: 0, expected: 1},
		"short max":    {n: 55, expected: 56},
		"long min":     {n: 56, expected: 58},
		"two byte len": {n: 256, expected: 259},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tt.expected, stringSpace(tt.n))
			dat, err := rlp.EncodeToBytes(fill(tt.n))
			require.NoError(t, err)
			require.Len(t, dat, tt.expected)
		})
	}
}
