// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import "go.opentelemetry.io/otel/attribute"

// Attribute keys shared by every relayplay span.
const (
	SessionIDKey   = attribute.Key("relayplay.session.id")
	GenerationKey  = attribute.Key("relayplay.session.generation")
	ReferenceKey   = attribute.Key("relayplay.reference.kind")
	QualityKey     = attribute.Key("relayplay.quality")
	ResolvePathKey = attribute.Key("relayplay.resolve.path")
	SourceKindKey  = attribute.Key("relayplay.source.kind")
	ErrorKindKey   = attribute.Key("relayplay.error.kind")
)

// SessionAttributes describes one session request.
func SessionAttributes(sessionID string, generation uint64, referenceKind, quality string) []attribute.KeyValue {
	return []attribute.KeyValue{
		SessionIDKey.String(sessionID),
		GenerationKey.Int64(int64(generation)),
		ReferenceKey.String(referenceKind),
		QualityKey.String(quality),
	}
}

// ResolveAttributes describes one upstream resolution.
func ResolveAttributes(path, quality string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{ResolvePathKey.String(path)}
	if quality != "" {
		attrs = append(attrs, QualityKey.String(quality))
	}
	return attrs
}

// SourceAttributes describes the manifest source handed to an engine.
func SourceAttributes(kind string) []attribute.KeyValue {
	return []attribute.KeyValue{SourceKindKey.String(kind)}
}

// ErrorAttributes tags a failed span with its error kind.
func ErrorAttributes(kind string) []attribute.KeyValue {
	return []attribute.KeyValue{ErrorKindKey.String(kind)}
}
