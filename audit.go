package goTrust

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/goTrust/internal/audit"
)

// AuditEvent is one recorded security decision.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher.
type AuditSink = audit.Sink

// NoOpSink drops every event.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers events in a channel for the caller to drain.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink logs events through a slog.Logger.
type SlogSink = audit.SlogSink

func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return audit.NewJSONWriterSink(w) }

func NewSlogSink(logger *slog.Logger) SlogSink { return audit.SlogSink{Logger: logger} }
