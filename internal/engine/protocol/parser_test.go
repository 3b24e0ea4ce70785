package protocol

import (
	"errors"
	"testing"
)

func TestParseLine(t *testing.T) {
	line := "1.500000 IP 1.1.56.2.49153 > 1.1.1.2.50000: Flags [.], seq 1:537, ack 1, win 65535, length 536"
	ev, err := ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine returned error: %v", err)
	}
	if ev.Malformed {
		t.Fatal("Event should not be malformed")
	}
	if ev.Timestamp != 1.5 {
		t.Errorf("Expected timestamp 1.5, got %v", ev.Timestamp)
	}
	if ev.SequenceID != "1:537," {
		t.Errorf("Expected sequence id '1:537,', got '%s'", ev.SequenceID)
	}
	if got := ev.Key.String(); got != "1.1.56.2.49153 > 1.1.1.2.50000" {
		t.Errorf("Unexpected key: %s", got)
	}
}

func TestParseLine_Malformed(t *testing.T) {
	cases := []string{
		"1.5 IP 1.1.56.2.49153 > 1.1.1.2.50000: Flags [S]",
		"abc IP 1.1.56.2.49153 > 1.1.1.2.50000: Flags [.], seq 1:537, ack 1",
	}
	for _, line := range cases {
		ev, err := ParseLine(line)
		if err != nil {
			t.Fatalf("ParseLine(%q) returned error: %v", line, err)
		}
		if !ev.Malformed {
			t.Errorf("ParseLine(%q) should be malformed", line)
		}
		if got := ev.Key.String(); got != "1.1.56.2.49153 > 1.1.1.2.50000" {
			t.Errorf("Unexpected key for malformed line: %s", got)
		}
	}
}

func TestParseLine_NoEndpoints(t *testing.T) {
	cases := []string{
		"",
		"1.5 ARP, Request who-has 1.1.1.2 tell 1.1.2.2, length 28",
		"1.5 IP 1.1.56.2 > 1.1.1.2: ICMP echo request",
		"1.5 IP foo.bar > 1.1.1.2.50000: Flags [.], seq 1:537, ack 1",
	}
	for _, line := range cases {
		if _, err := ParseLine(line); !errors.Is(err, ErrNoEndpoints) {
			t.Errorf("ParseLine(%q) expected ErrNoEndpoints, got %v", line, err)
		}
	}
}
