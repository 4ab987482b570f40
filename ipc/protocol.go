package ipc

import (
	"encoding/json"

	"cryogon/rizumu-fetch/downloader"
)

type CommandType string

// What a client can send
const (
	CmdPending CommandType = "pending"
	CmdClear   CommandType = "clear"
)

type Command struct {
	Type  CommandType `json:"type"`
	Owner string      `json:"owner"`
}

// Message types pushed to clients
const (
	MsgEvent   = "event"
	MsgPending = "pending"
	MsgCleared = "cleared"
	MsgError   = "error"
)

type PendingReply struct {
	Owner string               `json:"owner"`
	Jobs  []downloader.Summary `json:"jobs"`
}

type ClearedReply struct {
	Owner   string `json:"owner"`
	Existed bool   `json:"existed"`
}

type ErrorReply struct {
	Error string `json:"error"`
}

// Message is one line on the socket.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewMessage encodes v as a newline-terminated Message.
func NewMessage(v any, msgType string) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
