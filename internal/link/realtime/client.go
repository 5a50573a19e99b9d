package realtime

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"bondedlink/internal/link/model"
)

var subscribeStreamDesc = &grpc.StreamDesc{
	StreamName:    "Subscribe",
	ServerStreams: true,
}

type Client struct {
	conn *grpc.ClientConn
	own  bool
}

// Dial opens a plaintext connection; use NewClient to bring your own.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, own: true}, nil
}

func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

func (c *Client) Publish(ctx context.Context, msg model.Message) error {
	in, err := ToStruct(msg)
	if err != nil {
		return err
	}
	return c.conn.Invoke(ctx, PublishMethod, in, new(emptypb.Empty))
}

// Subscribe blocks, calling fn for every message of the conversation until
// ctx ends or the server closes the stream.
func (c *Client) Subscribe(ctx context.Context, conversationID string, fn func(model.Message)) error {
	stream, err := c.conn.NewStream(ctx, subscribeStreamDesc, SubscribeMethod)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(subscribeRequest(conversationID)); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		out := new(structpb.Struct)
		if err := stream.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		msg, err := FromStruct(out)
		if err != nil {
			continue
		}
		fn(msg)
	}
}

func (c *Client) Close() error {
	if !c.own {
		return nil
	}
	return c.conn.Close()
}
