// Copyright 2016 Aleksandr Demakin. All rights reserved.

package testutil

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Event is a decoded event log record.
type Event struct {
	Level   string `json:"level"`
	Module  string `json:"module"`
	Role    string `json:"role"`
	Event   string `json:"event"`
	Ts      string `json:"ts"`
	Details struct {
		Msg   string `json:"msg"`
		Bytes int    `json:"bytes"`
		Peer  string `json:"peer"`
	} `json:"details"`
}

// DecodeEvents parses json lines of an event log.
func DecodeEvents(data string) ([]Event, error) {
	var result []Event
	for _, line := range strings.Split(data, "\n") {
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, errors.Wrapf(err, "invalid event record %q", line)
		}
		result = append(result, e)
	}
	return result, nil
}

// EventNames returns the names of events in the order they were emitted.
func EventNames(events []Event) []string {
	result := make([]string, 0, len(events))
	for _, e := range events {
		result = append(result, e.Event)
	}
	return result
}
