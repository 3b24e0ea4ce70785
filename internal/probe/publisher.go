package probe

import (
	"TraceCorrelator/internal/codec"
	"TraceCorrelator/internal/config"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/proto"
)

// Publisher is responsible for publishing partial reports to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.NATSConfig) (*Publisher, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Name("tracecorr-publisher"))
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", url)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// Publish serializes a partial report to Protobuf and publishes it to the configured subject.
func (p *Publisher) Publish(partial codec.PartialReport) error {
	data, err := proto.Marshal(codec.PartialToStruct(partial))
	if err != nil {
		return fmt.Errorf("failed to marshal partial report: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return err
	}
	// Reports are rare; make sure this one reached the server before a short-lived CLI exits.
	return p.nc.Flush()
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		return err
	}
	log.Println("NATS connection drained and closed.")
	return nil
}
