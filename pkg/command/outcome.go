package command

// OutcomeKind classifies the result of handling one message.
type OutcomeKind uint8

const (
	// OutcomeExecuted means the action ran to completion.
	OutcomeExecuted OutcomeKind = iota

	// OutcomeRestartPending means settings were persisted and a restart requested.
	OutcomeRestartPending

	// OutcomeCodecError means the envelope could not be decoded or decrypted.
	OutcomeCodecError

	// OutcomeParseError means the plaintext is not a well-formed command.
	OutcomeParseError

	// OutcomeMisaddressed means the command names a different door.
	OutcomeMisaddressed

	// OutcomeAuthFailed means the password did not match.
	OutcomeAuthFailed

	// OutcomeBadTimestamp means the timestamp could not be parsed.
	OutcomeBadTimestamp

	// OutcomeExpired means the timestamp lies outside the replay window.
	OutcomeExpired

	// OutcomeUnknownCommand means the action is not recognized.
	OutcomeUnknownCommand

	// OutcomeActuatorFailed means the lock hardware rejected the change.
	OutcomeActuatorFailed

	// OutcomePersistFailed means the settings could not be written.
	OutcomePersistFailed

	// OutcomeSendFailed means a reply could not be written to the channel.
	OutcomeSendFailed
)

// String returns a human-readable outcome name.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeExecuted:
		return "EXECUTED"
	case OutcomeRestartPending:
		return "RESTART_PENDING"
	case OutcomeCodecError:
		return "CODEC_ERROR"
	case OutcomeParseError:
		return "PARSE_ERROR"
	case OutcomeMisaddressed:
		return "MISADDRESSED"
	case OutcomeAuthFailed:
		return "AUTH_FAILED"
	case OutcomeBadTimestamp:
		return "BAD_TIMESTAMP"
	case OutcomeExpired:
		return "EXPIRED"
	case OutcomeUnknownCommand:
		return "UNKNOWN_COMMAND"
	case OutcomeActuatorFailed:
		return "ACTUATOR_FAILED"
	case OutcomePersistFailed:
		return "PERSIST_FAILED"
	case OutcomeSendFailed:
		return "SEND_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the result of handling one message. It carries only the kind
// and the action, never the reason a check failed.
type Outcome struct {
	Kind   OutcomeKind
	Action Action
}

// OK reports whether the command was accepted.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeExecuted || o.Kind == OutcomeRestartPending
}

// Rejected reports whether the message was dropped before any action ran.
func (o Outcome) Rejected() bool {
	switch o.Kind {
	case OutcomeCodecError, OutcomeParseError, OutcomeMisaddressed, OutcomeAuthFailed,
		OutcomeBadTimestamp, OutcomeExpired, OutcomeUnknownCommand:
		return true
	}
	return false
}
