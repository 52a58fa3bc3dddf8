package grpc

import (
	"context"

	"github.com/pkg/errors"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a remote outreach server. Requests use the same field names as the
// HTTP API.
type Client struct {
	conn *gogrpc.ClientConn
}

func Dial(target string, opts ...gogrpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []gogrpc.DialOption{gogrpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := gogrpc.NewClient(target, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", target)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) SendNotification(ctx context.Context, req map[string]interface{}) (map[string]interface{}, error) {
	return c.call(ctx, sendNotificationMethod, req)
}

func (c *Client) DispatchBatch(ctx context.Context, req map[string]interface{}) (map[string]interface{}, error) {
	return c.call(ctx, dispatchBatchMethod, req)
}

func (c *Client) GetBatch(ctx context.Context, batchID string) (map[string]interface{}, error) {
	return c.call(ctx, getBatchMethod, map[string]interface{}{"batchId": batchID})
}

func (c *Client) ConfirmAttendance(ctx context.Context, recipientID string, partySize int) (map[string]interface{}, error) {
	return c.call(ctx, confirmAttendanceMethod, map[string]interface{}{"recipientId": recipientID, "partySize": partySize})
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, req map[string]interface{}) (map[string]interface{}, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
