package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return decodeError(c.client.Call(ServiceName+"."+method, req, resp))
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start begins a new route.
func (c *Client) Start() (*StateResponse, error) {
	var resp StateResponse
	if err := c.call("Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pause pauses the route.
func (c *Client) Pause() (*StateResponse, error) {
	var resp StateResponse
	if err := c.call("Pause", PauseRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resume resumes a paused route.
func (c *Client) Resume() (*StateResponse, error) {
	var resp StateResponse
	if err := c.call("Resume", ResumeRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reset abandons the route and deletes its backup.
func (c *Client) Reset() (*StateResponse, error) {
	var resp StateResponse
	if err := c.call("Reset", ResetRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop ends the route and saves it under name when save is set.
func (c *Client) Stop(name string, save bool) (*StopResponse, error) {
	var resp StopResponse
	if err := c.call("Stop", StopRequest{Name: name, Save: save}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Note adds a text note at the current position.
func (c *Client) Note(text string) (*EventResponse, error) {
	var resp EventResponse
	if err := c.call("Note", NoteRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Attach adds a media attachment at the current position.
func (c *Client) Attach(kind, data string) (*EventResponse, error) {
	var resp EventResponse
	if err := c.call("Attach", AttachRequest{Kind: kind, Data: data}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Timeline fetches the live route.
func (c *Client) Timeline() (*TimelineResponse, error) {
	var resp TimelineResponse
	if err := c.call("Timeline", TimelineRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.call("TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
