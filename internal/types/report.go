package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Canonical tokens produced by value coercion.
const (
	NullToken            = "NULL"
	GeometryInvalidToken = "GEOMETRY_INVALID"
)

// TabularResult is a read result: ordered headers and rows of coerced text.
// Every row has len(Headers) values, or both slices are empty.
type TabularResult struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// EmptyResult returns a header-less result with no rows.
func EmptyResult() *TabularResult {
	return &TabularResult{Headers: []string{}, Rows: [][]string{}}
}

// OutcomeKind tags a StatementOutcome.
type OutcomeKind string

const (
	OutcomeSelect   OutcomeKind = "select"
	OutcomeMutation OutcomeKind = "mutation"
	OutcomeError    OutcomeKind = "error"
)

// StatementOutcome is the result of one attempted statement. Exactly one of
// Result, AffectedRows or Message is meaningful, selected by Kind.
type StatementOutcome struct {
	Kind         OutcomeKind
	Result       *TabularResult
	AffectedRows int64
	Message      string
}

// SelectOutcome wraps a tabular result.
func SelectOutcome(r *TabularResult) StatementOutcome {
	if r == nil {
		r = EmptyResult()
	}
	return StatementOutcome{Kind: OutcomeSelect, Result: r}
}

// MutationOutcome wraps an affected-row count.
func MutationOutcome(affected int64) StatementOutcome {
	return StatementOutcome{Kind: OutcomeMutation, AffectedRows: affected}
}

// ErrorOutcome wraps a failure message.
func ErrorOutcome(msg string) StatementOutcome {
	return StatementOutcome{Kind: OutcomeError, Message: msg}
}

// IsError reports whether the statement failed.
func (o StatementOutcome) IsError() bool {
	return o.Kind == OutcomeError
}

type outcomeEnvelope struct {
	Type    OutcomeKind     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type mutationPayload struct {
	AffectedRows int64 `json:"affectedRows"`
}

// MarshalJSON encodes the outcome as {"type": ..., "payload": ...}.
func (o StatementOutcome) MarshalJSON() ([]byte, error) {
	var payload any
	switch o.Kind {
	case OutcomeSelect:
		r := o.Result
		if r == nil {
			r = EmptyResult()
		}
		payload = r
	case OutcomeMutation:
		payload = mutationPayload{AffectedRows: o.AffectedRows}
	case OutcomeError:
		payload = o.Message
	default:
		return nil, fmt.Errorf("unknown outcome kind %q", o.Kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(outcomeEnvelope{Type: o.Kind, Payload: raw})
}

// UnmarshalJSON decodes the {"type": ..., "payload": ...} form.
func (o *StatementOutcome) UnmarshalJSON(data []byte) error {
	var env outcomeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	switch env.Type {
	case OutcomeSelect:
		var r TabularResult
		if err := json.Unmarshal(env.Payload, &r); err != nil {
			return err
		}
		*o = SelectOutcome(&r)
	case OutcomeMutation:
		var m mutationPayload
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return err
		}
		*o = MutationOutcome(m.AffectedRows)
	case OutcomeError:
		var msg string
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return err
		}
		*o = ErrorOutcome(msg)
	default:
		return fmt.Errorf("unknown outcome type %q", env.Type)
	}
	return nil
}

// ExecutionStatus is the aggregate status of one database.
type ExecutionStatus string

const (
	StatusWaiting ExecutionStatus = "waiting"
	StatusSuccess ExecutionStatus = "success"
	StatusError   ExecutionStatus = "error"
)

// DatabaseReport is the final record of what ran against one database.
type DatabaseReport struct {
	Name    string             `json:"name"`
	Status  ExecutionStatus    `json:"status"`
	Log     *string            `json:"log"`
	Results []StatementOutcome `json:"results"`
}

// LogLine returns the log message or an empty string.
func (r DatabaseReport) LogLine() string {
	if r.Log == nil {
		return ""
	}
	return *r.Log
}

// SetLog replaces the log message.
func (r *DatabaseReport) SetLog(msg string) {
	r.Log = &msg
}

// LastTabular returns the last tabular result, or nil when no statement
// produced one. Trailing writes do not affect the choice.
func (r DatabaseReport) LastTabular() *TabularResult {
	for i := len(r.Results) - 1; i >= 0; i-- {
		if r.Results[i].Kind == OutcomeSelect {
			return r.Results[i].Result
		}
	}
	return nil
}

// Counts returns the number of non-error and error outcomes.
func (r DatabaseReport) Counts() (successes, failures int) {
	for _, o := range r.Results {
		if o.IsError() {
			failures++
		} else {
			successes++
		}
	}
	return successes, failures
}

// SavePolicy selects how result sets are exported.
type SavePolicy string

const (
	SaveNone     SavePolicy = "none"
	SaveSeparate SavePolicy = "separate"
	SaveSingle   SavePolicy = "single"
)

// ParseSavePolicy converts a user supplied policy. Empty means none.
func ParseSavePolicy(s string) (SavePolicy, error) {
	switch SavePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SaveNone:
		return SaveNone, nil
	case SaveSeparate:
		return SaveSeparate, nil
	case SaveSingle:
		return SaveSingle, nil
	default:
		return "", fmt.Errorf("invalid save option %q (expected none, separate or single)", s)
	}
}

// NeedsFolder reports whether the policy writes files.
func (p SavePolicy) NeedsFolder() bool {
	return p == SaveSeparate || p == SaveSingle
}
