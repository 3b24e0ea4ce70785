package model

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Endpoint is one side of a flow at the protocol layer: an IP address and a TCP port.
type Endpoint struct {
	Addr gopacket.Endpoint
	Port gopacket.Endpoint
}

// NewEndpoint builds an Endpoint from an IP address and a port number.
func NewEndpoint(ip net.IP, port uint16) Endpoint {
	return Endpoint{
		Addr: layers.NewIPEndpoint(ip),
		Port: layers.NewTCPPortEndpoint(layers.TCPPort(port)),
	}
}

// ParseEndpoint parses the tcpdump "-nn" rendering of an endpoint, e.g. "1.1.3.2.49153".
// The port is the part after the last dot.
func ParseEndpoint(s string) (Endpoint, error) {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return Endpoint{}, fmt.Errorf("endpoint %q has no port", s)
	}
	ip := net.ParseIP(s[:i])
	if ip == nil {
		return Endpoint{}, fmt.Errorf("endpoint %q has an invalid address", s)
	}
	port, err := strconv.ParseUint(s[i+1:], 10, 16)
	if err != nil {
		return Endpoint{}, fmt.Errorf("endpoint %q has an invalid port: %w", s, err)
	}
	return NewEndpoint(ip, uint16(port)), nil
}

// String renders the endpoint the way tcpdump does: "<addr>.<port>".
func (e Endpoint) String() string {
	return e.Addr.String() + "." + e.Port.String()
}

// FlowKey identifies one direction of traffic between two endpoints.
// It is comparable and can be used as a map key.
type FlowKey struct {
	Net       gopacket.Flow
	Transport gopacket.Flow
}

// NewFlowKey returns the key of the traffic going from src to dst.
func NewFlowKey(src, dst Endpoint) (FlowKey, error) {
	netFlow, err := gopacket.FlowFromEndpoints(src.Addr, dst.Addr)
	if err != nil {
		return FlowKey{}, fmt.Errorf("address family mismatch: %w", err)
	}
	transportFlow, err := gopacket.FlowFromEndpoints(src.Port, dst.Port)
	if err != nil {
		return FlowKey{}, fmt.Errorf("port type mismatch: %w", err)
	}
	return FlowKey{Net: netFlow, Transport: transportFlow}, nil
}

// Src returns the sending endpoint.
func (k FlowKey) Src() Endpoint {
	return Endpoint{Addr: k.Net.Src(), Port: k.Transport.Src()}
}

// Dst returns the receiving endpoint.
func (k FlowKey) Dst() Endpoint {
	return Endpoint{Addr: k.Net.Dst(), Port: k.Transport.Dst()}
}

// Reverse returns the key of the opposite direction.
func (k FlowKey) Reverse() FlowKey {
	return FlowKey{Net: k.Net.Reverse(), Transport: k.Transport.Reverse()}
}

// String renders the key as it appears in a tcpdump line: "<src> > <dst>".
func (k FlowKey) String() string {
	return k.Src().String() + " > " + k.Dst().String()
}

// FlowPair is a declared sender -> receiver relationship between two nodes.
type FlowPair struct {
	Sender   int `yaml:"sender" json:"sender"`
	Receiver int `yaml:"receiver" json:"receiver"`
}

func (p FlowPair) String() string {
	return fmt.Sprintf("%d->%d", p.Sender, p.Receiver)
}

// Signatures holds the two direction-specific keys of a flow.
type Signatures struct {
	Data FlowKey // sender -> receiver
	Ack  FlowKey // receiver -> sender
}

// Addressing maps node indices to endpoints: "<Prefix>.<node+NodeOffset>.<Suffix>".
type Addressing struct {
	Prefix       string
	Suffix       string
	NodeOffset   int
	SenderPort   uint16
	ReceiverPort uint16
}

// NodeIP returns the IPv4 address of a node.
func (a Addressing) NodeIP(node int) (net.IP, error) {
	s := fmt.Sprintf("%s.%d.%s", a.Prefix, node+a.NodeOffset, a.Suffix)
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return nil, fmt.Errorf("node %d renders invalid IPv4 address %q", node, s)
	}
	return ip, nil
}

// Signatures builds the data and ack keys of a flow pair.
func (a Addressing) Signatures(p FlowPair) (Signatures, error) {
	senderIP, err := a.NodeIP(p.Sender)
	if err != nil {
		return Signatures{}, err
	}
	receiverIP, err := a.NodeIP(p.Receiver)
	if err != nil {
		return Signatures{}, err
	}
	data, err := NewFlowKey(NewEndpoint(senderIP, a.SenderPort), NewEndpoint(receiverIP, a.ReceiverPort))
	if err != nil {
		return Signatures{}, err
	}
	return Signatures{Data: data, Ack: data.Reverse()}, nil
}

// TraceEvent is one parsed trace line.
// Malformed events carry no usable timestamp or sequence id; they still count
// toward loss but are excluded from delay computation.
type TraceEvent struct {
	Timestamp  float64
	Key        FlowKey
	SequenceID string
	Malformed  bool
}
