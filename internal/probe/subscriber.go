package probe

import (
	"TraceCorrelator/internal/codec"
	"TraceCorrelator/internal/config"
	"log"

	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// PartialHandler is a function that processes a received partial report.
type PartialHandler func(partial codec.PartialReport)

// Subscriber is responsible for subscribing to a NATS subject and decoding partial reports.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.NATSConfig) (*Subscriber, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Name("tracecorr-collector"))
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", url)
	return &Subscriber{nc: nc, subject: cfg.Subject}, nil
}

// Start subscribes to the configured subject and hands every decoded partial report to handler.
// Undecodable messages are logged and dropped.
func (s *Subscriber) Start(handler PartialHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		var pb structpb.Struct
		if err := proto.Unmarshal(msg.Data, &pb); err != nil {
			log.Printf("Error unmarshalling protobuf: %v", err)
			return
		}
		partial, err := codec.PartialFromStruct(&pb)
		if err != nil {
			log.Printf("Error decoding partial report: %v", err)
			return
		}
		handler(partial)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	log.Printf("Subscribed to '%s'. Waiting for partial reports...", s.subject)
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		log.Println("NATS connection closed.")
	}
}
