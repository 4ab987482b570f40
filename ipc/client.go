package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
)

// Client is a connection to a running Hub.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

func Dial(ctx context.Context, socketPath string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, scanner: bufio.NewScanner(conn)}, nil
}

func (c *Client) Send(cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	_, err = c.conn.Write(append(data, '\n'))
	return err
}

// Next blocks until the next message arrives.
func (c *Client) Next() (Message, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Message{}, err
		}
		return Message{}, net.ErrClosed
	}
	var msg Message
	err := json.Unmarshal(c.scanner.Bytes(), &msg)
	return msg, err
}

// Request sends cmd and returns the first reply that is not an event.
func (c *Client) Request(cmd Command) (Message, error) {
	if err := c.Send(cmd); err != nil {
		return Message{}, err
	}
	for {
		msg, err := c.Next()
		if err != nil || msg.Type != MsgEvent {
			return msg, err
		}
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}
