package packet

import "encoding/json"

// Message is the value object carried by PUBLISH: a topic, a QoS/retain
// pair, and a payload whose structured view is computed lazily and cached.
type Message struct {
	Topic      string
	PayloadRaw []byte
	QoS        byte
	Retain     bool

	view      any
	viewIsSet bool
}

// NewMessage builds a Message from application fields, ready for PUBLISH.
func NewMessage(topic string, payload []byte, qos byte, retain bool) *Message {
	return &Message{Topic: topic, PayloadRaw: payload, QoS: qos, Retain: retain}
}

// PayloadView returns the structured view of the payload: the result of a
// JSON decode on first access, falling back to the raw bytes unchanged if
// the payload is not valid JSON. The result is cached.
func (m *Message) PayloadView() any {
	if m.viewIsSet {
		return m.view
	}
	var v any
	if err := json.Unmarshal(m.PayloadRaw, &v); err != nil {
		m.view = m.PayloadRaw
	} else {
		m.view = v
	}
	m.viewIsSet = true
	return m.view
}

// SetPayloadView replaces the payload. []byte and string values are stored
// verbatim; anything else is JSON-marshalled. The cached view is invalidated.
func (m *Message) SetPayloadView(v any) error {
	switch p := v.(type) {
	case []byte:
		m.PayloadRaw = p
	case string:
		m.PayloadRaw = []byte(p)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		m.PayloadRaw = b
	}
	m.viewIsSet = false
	m.view = nil
	return nil
}
