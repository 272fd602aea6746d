package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
)

//HandleMessage records the reading (or array of readings) carried by an MQTT payload.
//Readings that identify no device are attributed to the EUI found in the topic,
//e.g. energy/devices/{eui}/readings.
func (s *Service) HandleMessage(ctx context.Context, topic string, payload []byte) BulkResult {
	payload = bytes.TrimSpace(payload)
	eui := euiFromTopic(topic)

	items := []json.RawMessage{}
	if len(payload) > 0 && payload[0] == '[' {
		if err := json.Unmarshal(payload, &items); err != nil {
			return BulkResult{
				Results: []Result{},
				Errors:  []ItemError{{Index: 0, Item: json.RawMessage(`null`), Error: "Invalid payload: " + err.Error()}},
			}
		}
	} else {
		items = append(items, json.RawMessage(payload))
	}

	result := s.ingestItems(ctx, items, eui)
	for _, e := range result.Errors {
		s.log.Warnf("dropped reading from topic %s: %s", topic, e.Error)
	}

	return result
}

func euiFromTopic(topic string) string {
	segments := strings.Split(topic, "/")
	for i, segment := range segments {
		if segment == "devices" && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return ""
}
