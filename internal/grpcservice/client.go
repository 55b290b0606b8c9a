package grpcservice

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.klb.dev/clipscope/internal/acquire"
	"go.klb.dev/clipscope/internal/copyback"
)

// DialOptions returns the options every Inspector client needs: plaintext
// transport, the JSON codec, and bearer auth when token is set.
func DialOptions(token string) []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}
	if token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearer(token)))
	}
	return opts
}

type bearer string

func (b bearer) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + string(b)}, nil
}

func (bearer) RequireTransportSecurity() bool { return false }

// Client is a typed Inspector client.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc, which should have been dialed with DialOptions.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, grpc.CallContentSubtype(CodecName))
}

// Acquire runs an acquisition on the server.
func (c *Client) Acquire(ctx context.Context) (acquire.State, error) {
	var out AcquireResponse
	if err := c.invoke(ctx, "Acquire", &AcquireRequest{}, &out); err != nil {
		return acquire.State{}, err
	}
	return out.State, nil
}

// CopyBack copies the server's current snapshot. An empty snapshotID skips
// the staleness check.
func (c *Client) CopyBack(ctx context.Context, snapshotID string, edits map[int]string) (copyback.Result, error) {
	var out CopyBackResponse
	err := c.invoke(ctx, "CopyBack", &CopyBackRequest{SnapshotID: snapshotID, Edits: edits}, &out)
	return out.Result, err
}

// CopyEntry copies one entry of the server's current snapshot.
func (c *Client) CopyEntry(ctx context.Context, snapshotID string, index int, edits map[int]string) (copyback.Result, error) {
	var out CopyBackResponse
	err := c.invoke(ctx, "CopyBack", &CopyBackRequest{SnapshotID: snapshotID, Edits: edits, Index: &index}, &out)
	return out.Result, err
}

// State returns the server's state.
func (c *Client) State(ctx context.Context) (*StateResponse, error) {
	var out StateResponse
	if err := c.invoke(ctx, "State", &StateRequest{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Watch streams hub events to fn until ctx ends, the stream closes, or fn
// returns an error.
func (c *Client) Watch(ctx context.Context, kinds []string, fn func(WatchEvent) error) error {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], "/"+ServiceName+"/Watch", grpc.CallContentSubtype(CodecName))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&WatchRequest{Kinds: kinds}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		var ev WatchEvent
		if err := stream.RecvMsg(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}
