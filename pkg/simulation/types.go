// Package simulation prepares transmission requests for the remote simulator
// and interprets what it sends back. It never computes CRCs itself.
package simulation

import (
	"errors"

	"github.com/dd0wney/crclink/pkg/topology"
)

// ErrorType selects the bit-error model the collaborator injects
type ErrorType string

const (
	ErrorNone   ErrorType = "none"
	ErrorSingle ErrorType = "single"
	ErrorDouble ErrorType = "double"
	ErrorOdd    ErrorType = "odd"
	ErrorBurst  ErrorType = "burst"
)

// ErrorTypes lists the models in display order
var ErrorTypes = []ErrorType{ErrorNone, ErrorSingle, ErrorDouble, ErrorOdd, ErrorBurst}

// Next cycles through ErrorTypes
func (e ErrorType) Next() ErrorType {
	for i, t := range ErrorTypes {
		if t == e {
			return ErrorTypes[(i+1)%len(ErrorTypes)]
		}
	}
	return ErrorNone
}

var (
	ErrMissingSelection = errors.New("source and destination must both be selected")
	ErrEmptyData        = errors.New("data bit string is empty")
	ErrInvalidRequest   = errors.New("invalid simulation request")
)

// ErrorParams is the error descriptor sent to the collaborator
type ErrorParams struct {
	ErrorType  ErrorType `json:"error_type" validate:"oneof=none single double odd burst"`
	ErrorCount int       `json:"error_count" validate:"gte=0"`
}

// Request is the simulate call payload
type Request struct {
	SourceID             topology.NodeID `json:"source_id" validate:"nefield=DestinationID"`
	DestinationID        topology.NodeID `json:"destination_id"`
	Data                 string          `json:"data" validate:"required"`
	Key                  string          `json:"key"`
	Delay                float64         `json:"delay" validate:"finite,gte=0"`
	PacketLossPercentage float64         `json:"packet_loss_percentage" validate:"finite,gte=0,lte=100"`
	ErrorParams          ErrorParams     `json:"error_params"`
}

// Result is the collaborator's verdict, stored verbatim
type Result struct {
	Delay                 float64   `json:"delay"`
	PacketLost            bool      `json:"packet_lost"`
	OriginalCodeword      string    `json:"original_codeword,omitempty"`
	CRCRemainder          string    `json:"crc_remainder,omitempty"`
	ErrorType             ErrorType `json:"error_type,omitempty"`
	ErrorCount            int       `json:"error_count,omitempty"`
	ErrorInjectedCodeword string    `json:"error_injected_codeword,omitempty"`
	CRCVerification       bool      `json:"crc_verification"`
	// Error carries the collaborator's note on a lost packet
	Error string `json:"error,omitempty"`
}

// Form holds the operator-editable fields. Nil overrides fall back to the
// orchestrator defaults.
type Form struct {
	Data                 string
	Key                  string
	Delay                *float64
	PacketLossPercentage *float64
	ErrorType            ErrorType
	ErrorCount           int
}

// Defaults are applied where the form leaves a value unset
type Defaults struct {
	Delay                float64
	PacketLossPercentage float64
	Key                  string
	ErrorType            ErrorType
}
