package command

import "strings"

// Action is the requested operation of a command.
type Action uint8

const (
	ActionUnknown Action = iota
	ActionUnlock
	ActionLock
	ActionUpdateWiFi
	ActionUpdateServer
	ActionUpdatePresetPassword
	ActionGetPublicKey
	ActionGetStatus
)

var actionNames = map[Action]string{
	ActionUnlock:               "unlock",
	ActionLock:                 "lock",
	ActionUpdateWiFi:           "updateWifi",
	ActionUpdateServer:         "updateServer",
	ActionUpdatePresetPassword: "updatePresetPassword",
	ActionGetPublicKey:         "getPublicKey",
	ActionGetStatus:            "getStatus",
}

// String returns the wire name of the action.
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// ParseAction maps a wire name to an Action, ignoring case.
func ParseAction(name string) Action {
	for a, n := range actionNames {
		if strings.EqualFold(n, name) {
			return a
		}
	}
	return ActionUnknown
}

// RequiresRestart reports whether the action changes settings that only
// take effect after a restart.
func (a Action) RequiresRestart() bool {
	switch a {
	case ActionUpdateWiFi, ActionUpdateServer, ActionUpdatePresetPassword:
		return true
	}
	return false
}
