package display

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// State selects a display template.
type State string

const (
	StateBoot    State = "boot"
	StateHome    State = "home"
	StateTimeIn  State = "timein"
	StateTimeOut State = "timeout"
	StateNoEvent State = "noevent"

	StateEnrollEntry  State = "enroll/entry"
	StateEnrollCheck  State = "enroll/check"
	StateEnrollScan1  State = "enroll/scan1"
	StateEnrollRemove State = "enroll/remove"
	StateEnrollScan2  State = "enroll/scan2"
	StateEnrollModel  State = "enroll/model"
	StateEnrollDone   State = "enroll/done"

	StateLogged        State = "logged"
	StateBadID         State = "err/badid"
	StateCancelled     State = "err/cancelled"
	StateNoActiveEvent State = "err/noevent"
	StateNetworkDown   State = "err/network"
	StateServerError   State = "err/server"
	StateNoMatch       State = "err/nomatch"
	StateBadImage      State = "err/image"
	StateMismatch      State = "err/mismatch"
	StateStorageFail   State = "err/storage"
	StateAlreadyLogged State = "err/already"
	StateSensorOffline State = "err/sensor"
)

// Templates maps each state to up to four display lines. Placeholders
// {event}, {id}, {code} and {digits} are substituted on render.
type Templates map[State][]string

// DefaultTemplates returns the built-in message set.
func DefaultTemplates() Templates {
	return Templates{
		StateBoot:    {"ATTENDANCE TERMINAL", "", "starting up...", ""},
		StateHome:    {"ATTENDANCE TERMINAL", "", "select a mode", ""},
		StateTimeIn:  {"TIME-IN", "{event}", "", "place finger"},
		StateTimeOut: {"TIME-OUT", "{event}", "", "place finger"},
		StateNoEvent: {"NO ACTIVE EVENT", "", "attendance is", "closed"},

		StateEnrollEntry:  {"ENROLL", "", "enter id:", "{digits}_"},
		StateEnrollCheck:  {"ENROLL ID {id}", "", "checking id...", ""},
		StateEnrollScan1:  {"ENROLL ID {id}", "", "place finger", "(scan 1 of 2)"},
		StateEnrollRemove: {"ENROLL ID {id}", "", "remove finger", ""},
		StateEnrollScan2:  {"ENROLL ID {id}", "", "place finger again", "(scan 2 of 2)"},
		StateEnrollModel:  {"ENROLL ID {id}", "", "creating template", ""},
		StateEnrollDone:   {"ENROLL ID {id}", "", "enrolled!", ""},

		StateLogged:        {"{event}", "", "ID {id} logged", "thank you!"},
		StateBadID:         {"INVALID ID", "", "use 1-1000", ""},
		StateCancelled:     {"CANCELLED", "", "returning home", ""},
		StateNoActiveEvent: {"NO ACTIVE EVENT", "", "record not logged", ""},
		StateNetworkDown:   {"NETWORK ERROR", "", "backend unreachable", "try again"},
		StateServerError:   {"SERVER ERROR {code}", "", "record not logged", ""},
		StateNoMatch:       {"NOT RECOGNIZED", "", "finger not enrolled", "try again"},
		StateBadImage:      {"SCAN FAILED", "", "bad image", "try again"},
		StateMismatch:      {"SCANS DIFFER", "", "use the same finger", "start over"},
		StateStorageFail:   {"STORAGE ERROR", "", "template not saved", ""},
		StateAlreadyLogged: {"ALREADY LOGGED", "", "ID {id} has", "timed in"},
		StateSensorOffline: {"SENSOR OFFLINE", "", "biometrics disabled", ""},
	}
}

// Load reads template overrides and merges them over the defaults. States not
// mentioned in the override keep their built-in message.
func Load(r io.Reader) (Templates, error) {
	var overrides map[State][]string
	if err := yaml.NewDecoder(r).Decode(&overrides); err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	templates := DefaultTemplates()
	for state, lines := range overrides {
		if _, ok := templates[state]; !ok {
			return nil, fmt.Errorf("templates: unknown state %q", state)
		}
		templates[state] = lines
	}
	return templates, nil
}
