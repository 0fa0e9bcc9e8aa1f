package runner

import (
	"encoding/json"

	"github.com/ylai/autoplatform/pipeline"
)

// Message is one frame of a task status stream.
type Message struct {
	Type    string          `json:"type,omitempty"`
	TaskID  string          `json:"task_id,omitempty"`
	NodeID  string          `json:"node_id,omitempty"`
	Status  pipeline.Status `json:"status,omitempty"`
	Elapsed float64         `json:"elapsed,omitempty"`
	Cached  bool            `json:"cached,omitempty"`
	Message string          `json:"message,omitempty"`
}

// IsNodeUpdate reports whether the frame carries a node status.
func (m Message) IsNodeUpdate() bool {
	return m.NodeID != "" && (m.Status != "" || m.Type == "node_update")
}

// ParseMessage decodes a frame. Both node_id and nodeId are accepted.
func ParseMessage(data []byte) (Message, error) {
	var wire struct {
		Message
		NodeIDCamel string `json:"nodeId"`
		TaskIDCamel string `json:"taskId"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return Message{}, err
	}
	m := wire.Message
	if m.NodeID == "" {
		m.NodeID = wire.NodeIDCamel
	}
	if m.TaskID == "" {
		m.TaskID = wire.TaskIDCamel
	}
	return m, nil
}

// resumeFrame is sent after every (re)connect.
type resumeFrame struct {
	Type   string `json:"type"`
	TaskID string `json:"taskId"`
}
