package protocol

import (
	"TraceCorrelator/internal/model"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	timestampField = 0
	sequenceField  = 8

	// MinFields is the number of whitespace separated tokens a record needs
	// to carry a sequence identifier.
	MinFields = sequenceField + 1
)

// ErrNoEndpoints is returned for lines that do not describe a packet between two endpoints
// (ARP, link-layer notices, empty lines).
var ErrNoEndpoints = errors.New("line carries no endpoint pair")

// ParseLine decodes one tcpdump "-nn -tt" text line into a TraceEvent.
//
//	1.500000 IP 1.1.56.2.49153 > 1.1.1.2.50000: Flags [.], seq 1:537, ack 1, win 65535, length 536
//
// The endpoint pair is the token before and after the first ">" token. A line whose
// endpoints parse but which has too few tokens or an invalid timestamp is returned
// with Malformed set and a nil error.
func ParseLine(line string) (model.TraceEvent, error) {
	fields := strings.Fields(line)

	arrow := -1
	for i := 1; i < len(fields)-1; i++ {
		if fields[i] == ">" {
			arrow = i
			break
		}
	}
	if arrow < 0 {
		return model.TraceEvent{}, ErrNoEndpoints
	}

	src, err := model.ParseEndpoint(fields[arrow-1])
	if err != nil {
		return model.TraceEvent{}, fmt.Errorf("%w: %v", ErrNoEndpoints, err)
	}
	dst, err := model.ParseEndpoint(strings.TrimSuffix(fields[arrow+1], ":"))
	if err != nil {
		return model.TraceEvent{}, fmt.Errorf("%w: %v", ErrNoEndpoints, err)
	}
	key, err := model.NewFlowKey(src, dst)
	if err != nil {
		return model.TraceEvent{}, fmt.Errorf("%w: %v", ErrNoEndpoints, err)
	}

	event := model.TraceEvent{Key: key}
	if len(fields) < MinFields {
		event.Malformed = true
		return event, nil
	}
	ts, err := strconv.ParseFloat(fields[timestampField], 64)
	if err != nil {
		event.Malformed = true
		return event, nil
	}
	event.Timestamp = ts
	event.SequenceID = fields[sequenceField]

	return event, nil
}
