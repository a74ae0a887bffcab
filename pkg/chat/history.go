package chat

// ReconcileHistory merges persisted history with the live in-memory
// messages of a thread. Persisted records map to done-status messages and
// are prepended before any live messages; the two sets are disjoint by
// construction, so no content-level deduplication happens.
func ReconcileHistory(records []MessageRecord, live []Message) []Message {
	merged := make([]Message, 0, len(records)+len(live))

	for _, record := range records {
		merged = append(merged, historyMessage(record))
	}

	return append(merged, live...)
}

// historyMessage maps one persisted record into the live message shape.
// Persisted messages are never in-flight, so the status is fixed at done.
func historyMessage(record MessageRecord) Message {
	return Message{
		ID:        record.ID,
		Role:      record.Role,
		Content:   record.Content,
		Status:    StatusDone,
		Timestamp: record.CreatedAt,
		RunID:     record.RunID,
		Artifacts: record.Artifacts,
	}
}
