package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "dating.v1.MatchingService"

// MatchingServer is the server API of dating.v1.MatchingService.
type MatchingServer interface {
	SelectCandidates(context.Context, *SelectCandidatesRequest) (*SelectCandidatesResponse, error)
	RecordDecision(context.Context, *RecordDecisionRequest) (*RecordDecisionResponse, error)
	ListMatches(context.Context, *ListMatchesRequest) (*ListMatchesResponse, error)
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	ListLikedYou(context.Context, *ListLikedYouRequest) (*ListLikedYouResponse, error)
	CountLikedYou(context.Context, *CountLikedYouRequest) (*CountLikedYouResponse, error)
	Connect(grpc.ServerStream) error
}

// ServiceDesc describes dating.v1.MatchingService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MatchingServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("SelectCandidates", MatchingServer.SelectCandidates),
		unary("RecordDecision", MatchingServer.RecordDecision),
		unary("ListMatches", MatchingServer.ListMatches),
		unary("ListMessages", MatchingServer.ListMessages),
		unary("SendMessage", MatchingServer.SendMessage),
		unary("ListLikedYou", MatchingServer.ListLikedYou),
		unary("CountLikedYou", MatchingServer.CountLikedYou),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Connect",
			Handler:       connectHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "dating/v1/matching.json",
}

// unary adapts a typed method to grpc.MethodDesc, running interceptors
// the same way generated code does.
func unary[Req, Resp any](name string, call func(MatchingServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "decode %s request: %v", name, err)
			}
			if interceptor == nil {
				return call(srv.(MatchingServer), ctx, req)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MatchingServer), ctx, req.(*Req))
			}
			return interceptor(ctx, req, info, handler)
		},
	}
}

func connectHandler(srv any, stream grpc.ServerStream) error {
	return srv.(MatchingServer).Connect(stream)
}
