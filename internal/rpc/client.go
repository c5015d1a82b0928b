package rpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"

	"github.com/oggyb/muzz-match/internal/server"
)

// Client calls dating.v1.MatchingService over the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) SelectCandidates(ctx context.Context, req *SelectCandidatesRequest) (*SelectCandidatesResponse, error) {
	return invoke[SelectCandidatesResponse](ctx, c.cc, "SelectCandidates", req)
}

func (c *Client) RecordDecision(ctx context.Context, req *RecordDecisionRequest) (*RecordDecisionResponse, error) {
	return invoke[RecordDecisionResponse](ctx, c.cc, "RecordDecision", req)
}

func (c *Client) ListMatches(ctx context.Context, req *ListMatchesRequest) (*ListMatchesResponse, error) {
	return invoke[ListMatchesResponse](ctx, c.cc, "ListMatches", req)
}

func (c *Client) ListMessages(ctx context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	return invoke[ListMessagesResponse](ctx, c.cc, "ListMessages", req)
}

func (c *Client) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	return invoke[SendMessageResponse](ctx, c.cc, "SendMessage", req)
}

func (c *Client) ListLikedYou(ctx context.Context, req *ListLikedYouRequest) (*ListLikedYouResponse, error) {
	return invoke[ListLikedYouResponse](ctx, c.cc, "ListLikedYou", req)
}

func (c *Client) CountLikedYou(ctx context.Context, req *CountLikedYouRequest) (*CountLikedYouResponse, error) {
	return invoke[CountLikedYouResponse](ctx, c.cc, "CountLikedYou", req)
}

// ConnectStream is the client side of the relay stream.
type ConnectStream struct {
	grpc.ClientStream
}

// Send writes one frame, e.g. {"type":"authenticate","userId":"a"}.
func (s *ConnectStream) Send(frame any) error {
	return s.SendMsg(frame)
}

// Recv reads the next raw frame.
func (s *ConnectStream) Recv() (json.RawMessage, error) {
	var raw json.RawMessage
	if err := s.RecvMsg(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) Connect(ctx context.Context) (*ConnectStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/Connect", grpc.CallContentSubtype(server.JSONCodecName))
	if err != nil {
		return nil, err
	}
	return &ConnectStream{ClientStream: stream}, nil
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, req any) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, grpc.CallContentSubtype(server.JSONCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}
