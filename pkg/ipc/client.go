package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
)

// Client is the kanshictl side of the RPC connection.
type Client struct {
	conn net.Conn
}

// Dial connects to the running daemon's RPC socket.
func Dial() (*Client, error) {
	addr, err := Address()
	if err != nil {
		return nil, err
	}
	conn, err := net.Dial("unix", addr)
	if err != nil {
		return nil, NewKindError(KindRPCTransport, fmt.Errorf("couldn't connect to kanshi at %s: is the kanshi daemon running? (%w)", addr, err))
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) call(req request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return NewKindError(KindRPCTransport, err)
	}

	scanner := bufio.NewScanner(c.conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return NewKindError(KindRPCTransport, err)
		}
		return NewKindError(KindRPCTransport, fmt.Errorf("daemon closed the connection without replying"))
	}

	var resp response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		kind := resp.Kind
		if kind == "" {
			kind = KindRPCTransport
		}
		return NewKindError(kind, fmt.Errorf("%s", resp.Error))
	}
	return nil
}

// Reload asks the daemon to reparse its config file(s).
func (c *Client) Reload() error {
	return c.call(request{Method: MethodReload})
}

// SetProfile asks the daemon to force the named profile on its next match.
func (c *Client) SetProfile(profile string) error {
	return c.call(request{Method: MethodSetProfile, Profile: profile})
}
