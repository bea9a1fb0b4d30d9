package simulation

import (
	"fmt"
)

// Verdict is the operator-facing reading of a Result
type Verdict string

const (
	VerdictLost       Verdict = "lost"
	VerdictClean      Verdict = "clean"
	VerdictDetected   Verdict = "detected"
	VerdictUndetected Verdict = "undetected"
)

// Corrupted reports whether the codeword was altered in transit
func (r Result) Corrupted() bool {
	return r.ErrorInjectedCodeword != "" && r.ErrorInjectedCodeword != r.OriginalCodeword
}

// Interpret classifies a result. A failed CRC check is a detection even if
// the codeword looks unaltered; an altered codeword that still passes is an
// undetected error.
func Interpret(r Result) Verdict {
	switch {
	case r.PacketLost:
		return VerdictLost
	case !r.CRCVerification:
		return VerdictDetected
	case r.Corrupted():
		return VerdictUndetected
	default:
		return VerdictClean
	}
}

// Summary renders a result as one log line
func Summary(req Request, r Result) string {
	route := fmt.Sprintf("%d -> %d", req.SourceID, req.DestinationID)

	switch v := Interpret(r); v {
	case VerdictLost:
		return fmt.Sprintf("%s: packet lost after %.2fs", route, r.Delay)
	case VerdictClean:
		return fmt.Sprintf("%s: codeword %s (remainder %s) verified, no errors", route, r.OriginalCodeword, r.CRCRemainder)
	default:
		outcome := "CRC detected the error"
		if v == VerdictUndetected {
			outcome = "CRC check passed, error went undetected"
		}
		return fmt.Sprintf("%s: codeword %s (remainder %s) received as %s [%s x%d]: %s",
			route, r.OriginalCodeword, r.CRCRemainder, r.ErrorInjectedCodeword, r.ErrorType, r.ErrorCount, outcome)
	}
}
