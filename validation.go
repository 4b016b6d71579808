package tabschema

import "fmt"

// ValidationAction is the configured response to a line-level anomaly.
type ValidationAction uint8

const (
	// ActionNone continues silently.
	ActionNone ValidationAction = iota
	// ActionError reports to the error sink and continues.
	ActionError
	// ActionException aborts the whole parse.
	ActionException
	// ActionIgnoreLine drops the current line without reporting.
	ActionIgnoreLine
)

// ActionOmitLine is an alias of ActionIgnoreLine.
const ActionOmitLine = ActionIgnoreLine

func (a ValidationAction) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionError:
		return "error"
	case ActionException:
		return "exception"
	case ActionIgnoreLine:
		return "ignore_line"
	}
	return fmt.Sprintf("ValidationAction(%d)", uint8(a))
}

// ParseValidationAction maps a configuration name to a ValidationAction.
func ParseValidationAction(s string) (ValidationAction, error) {
	switch normalizeName(s) {
	case "none", "ignore":
		return ActionNone, nil
	case "error", "report":
		return ActionError, nil
	case "exception", "fail", "abort":
		return ActionException, nil
	case "ignoreline", "omitline":
		return ActionIgnoreLine, nil
	}
	return ActionNone, fmt.Errorf("tabschema: unknown validation action %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *ValidationAction) UnmarshalText(text []byte) error {
	v, err := ParseValidationAction(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (a ValidationAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

type failureClass uint8

const (
	failUndefinedLine failureClass = iota
	failInsufficient
	failOverflow
)

type verdict uint8

const (
	// verdictContinue proceeds silently: skip an undefined line, synthesize a
	// missing cell or keep an extra one.
	verdictContinue verdict = iota
	// verdictReport proceeds like verdictContinue after notifying the error sink.
	verdictReport
	// verdictAbort ends the parse with the failure.
	verdictAbort
	// verdictDrop discards the current line silently.
	verdictDrop
)

func decide(class failureClass, action ValidationAction) verdict {
	switch action {
	case ActionError:
		return verdictReport
	case ActionException:
		return verdictAbort
	case ActionIgnoreLine:
		if class == failOverflow {
			return verdictReport
		}
		return verdictDrop
	default:
		return verdictContinue
	}
}
