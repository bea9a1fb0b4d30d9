package simulation

import (
	"context"
	"errors"
	"fmt"

	"github.com/dd0wney/crclink/pkg/selection"
	"github.com/dd0wney/crclink/pkg/validation"
)

// Simulator is the remote collaborator's simulate operation
type Simulator interface {
	Simulate(ctx context.Context, req Request) (Result, error)
}

// Orchestrator assembles requests from the current selection and form
type Orchestrator struct {
	defaults Defaults
}

// NewOrchestrator creates an orchestrator with the given defaults
func NewOrchestrator(defaults Defaults) *Orchestrator {
	if defaults.ErrorType == "" {
		defaults.ErrorType = ErrorNone
	}
	return &Orchestrator{defaults: defaults}
}

// Defaults returns the configured defaults
func (o *Orchestrator) Defaults() Defaults {
	return o.defaults
}

// Prepare checks preconditions and builds a request. Data and key are
// copied verbatim; whether they are binary is the collaborator's business.
func (o *Orchestrator) Prepare(sel selection.Selection, form Form) (Request, error) {
	src, dst, ok := sel.Pair()
	if !ok {
		return Request{}, ErrMissingSelection
	}
	if form.Data == "" {
		return Request{}, ErrEmptyData
	}

	req := Request{
		SourceID:             src,
		DestinationID:        dst,
		Data:                 form.Data,
		Key:                  validation.DefaultOr(form.Key, o.defaults.Key),
		Delay:                o.defaults.Delay,
		PacketLossPercentage: o.defaults.PacketLossPercentage,
		ErrorParams: ErrorParams{
			ErrorType:  validation.DefaultOr(form.ErrorType, o.defaults.ErrorType),
			ErrorCount: form.ErrorCount,
		},
	}
	if form.Delay != nil {
		req.Delay = *form.Delay
	}
	if form.PacketLossPercentage != nil {
		req.PacketLossPercentage = *form.PacketLossPercentage
	}

	if err := validation.Struct(&req); err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return req, nil
}

// Run dispatches a prepared request. It does not retry.
func (o *Orchestrator) Run(ctx context.Context, sim Simulator, req Request) (Result, error) {
	res, err := sim.Simulate(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("simulate %d->%d: %w", req.SourceID, req.DestinationID, err)
	}
	return res, nil
}

// IsValidation reports whether err is a precondition failure raised before
// any request was sent
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingSelection) || errors.Is(err, ErrEmptyData) || errors.Is(err, ErrInvalidRequest)
}
