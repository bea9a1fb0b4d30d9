package app

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/dd0wney/crclink/pkg/session"
	"github.com/dd0wney/crclink/pkg/simulation"
)

// FormInput is the simulation form as typed by the operator
type FormInput struct {
	Data       string
	Key        string
	ErrorCount string
	Delay      string
	PacketLoss string
	ErrorType  simulation.ErrorType
}

// Start turns the form into the message that starts a simulation. Blank
// numeric fields fall back to the configured defaults; a field that does not
// parse yields FormRejected instead.
func (a *App) Start(in FormInput) session.Msg {
	return ParseForm(in, a.Config.Simulation.ErrorCount)
}

// ParseForm is Start without an App. Data and Key pass through untouched;
// only the numeric fields are trimmed before parsing.
func ParseForm(in FormInput, defaultErrorCount int) session.Msg {
	form := simulation.Form{
		Data:       in.Data,
		Key:        in.Key,
		ErrorType:  in.ErrorType,
		ErrorCount: defaultErrorCount,
	}

	if v := strings.TrimSpace(in.ErrorCount); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return session.FormRejected{Field: "error count", Err: err}
		}
		form.ErrorCount = n
	}

	var err error
	if form.Delay, err = optionalFloat(in.Delay); err != nil {
		return session.FormRejected{Field: "delay", Err: err}
	}
	if form.PacketLossPercentage, err = optionalFloat(in.PacketLoss); err != nil {
		return session.FormRejected{Field: "packet loss", Err: err}
	}

	return session.StartSimulation{Form: form}
}

var errNotFinite = errors.New("must be a finite number")

func optionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, errNotFinite
	}
	return &f, nil
}
