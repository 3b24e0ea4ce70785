package report

import (
	"TraceCorrelator/internal/alerter"
	"TraceCorrelator/internal/config"
	"TraceCorrelator/internal/factory"
	"TraceCorrelator/internal/model"
	"TraceCorrelator/internal/notification"
)

// --- Factory Registration ---

func init() {
	factory.RegisterWriter("text", func(def config.WriterDef) (model.Writer, error) {
		return NewTextWriter(def.Text.Path), nil
	})
	factory.RegisterWriter("gob", func(def config.WriterDef) (model.Writer, error) {
		return NewGobWriter(def.Gob.RootPath), nil
	})
	factory.RegisterWriter("clickhouse", func(def config.WriterDef) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse)
	})
	factory.RegisterWriter("nats", func(def config.WriterDef) (model.Writer, error) {
		return NewNATSWriter(def.NATS)
	})
	factory.RegisterWriter("bolt", func(def config.WriterDef) (model.Writer, error) {
		return NewBoltWriter(def.Bolt.Path)
	})
	factory.RegisterWriter("alert", func(def config.WriterDef) (model.Writer, error) {
		return alerter.NewAlerter(def.Alert, notification.NewEmailNotifier(def.Alert.SMTP)), nil
	})
}
