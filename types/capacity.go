package types

import (
	"errors"
	"fmt"
)

var (
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrInvalidCapacity  = errors.New("invalid capacity")
)

// Capacity bounds every variable-length field of the persisted records.
type Capacity struct {
	MaxTitleBytes   int `mapstructure:"max_title_bytes" json:"max_title_bytes"`
	MaxBodyBytes    int `mapstructure:"max_body_bytes" json:"max_body_bytes"`
	MaxLabelBytes   int `mapstructure:"max_label_bytes" json:"max_label_bytes"`
	MaxOptions      int `mapstructure:"max_options" json:"max_options"`
	MaxMembers      int `mapstructure:"max_members" json:"max_members"`
	MaxTargetBytes  int `mapstructure:"max_target_bytes" json:"max_target_bytes"`
	MaxPayloadBytes int `mapstructure:"max_payload_bytes" json:"max_payload_bytes"`
	MaxCapabilities int `mapstructure:"max_capabilities" json:"max_capabilities"`
}

func DefaultCapacity() Capacity {
	return Capacity{
		MaxTitleBytes:   100,
		MaxBodyBytes:    100,
		MaxLabelBytes:   100,
		MaxOptions:      50,
		MaxMembers:      50,
		MaxTargetBytes:  32,
		MaxPayloadBytes: 100,
		MaxCapabilities: 16,
	}
}

func (c Capacity) Validate() error {
	fields := []struct {
		name string
		val  int
	}{
		{"max_title_bytes", c.MaxTitleBytes},
		{"max_body_bytes", c.MaxBodyBytes},
		{"max_label_bytes", c.MaxLabelBytes},
		{"max_options", c.MaxOptions},
		{"max_members", c.MaxMembers},
		{"max_target_bytes", c.MaxTargetBytes},
		{"max_payload_bytes", c.MaxPayloadBytes},
		{"max_capabilities", c.MaxCapabilities},
	}
	for _, f := range fields {
		if f.val <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidCapacity, f.name, f.val)
		}
	}
	return nil
}

func exceeded(field string, got, max int) error {
	return fmt.Errorf("%w: %s is %d, max %d", ErrCapacityExceeded, field, got, max)
}

func (c Capacity) CheckMembers(n int) error {
	if n > c.MaxMembers {
		return exceeded("members", n, c.MaxMembers)
	}
	return nil
}

// CheckProposal validates the caller supplied fields of a new proposal.
func (c Capacity) CheckProposal(title, body string, options []ProposalOption, action ExternalAction) error {
	if len(title) > c.MaxTitleBytes {
		return exceeded("title", len(title), c.MaxTitleBytes)
	}
	if len(body) > c.MaxBodyBytes {
		return exceeded("body", len(body), c.MaxBodyBytes)
	}
	if len(options) > c.MaxOptions {
		return exceeded("options", len(options), c.MaxOptions)
	}
	for i, o := range options {
		if len(o.Label) > c.MaxLabelBytes {
			return exceeded(fmt.Sprintf("options[%d].label", i), len(o.Label), c.MaxLabelBytes)
		}
	}
	if len(action.Target) > c.MaxTargetBytes {
		return exceeded("action.target", len(action.Target), c.MaxTargetBytes)
	}
	if len(action.Payload) > c.MaxPayloadBytes {
		return exceeded("action.payload", len(action.Payload), c.MaxPayloadBytes)
	}
	return nil
}

func (c Capacity) CheckCapabilities(n int) error {
	if n > c.MaxCapabilities {
		return exceeded("capabilities", n, c.MaxCapabilities)
	}
	return nil
}
