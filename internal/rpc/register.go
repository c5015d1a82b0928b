package rpc

import "google.golang.org/grpc"

// Registrar ties the MatchingService into the gRPC server.
type Registrar struct {
	service *Service
}

func NewRegistrar(service *Service) *Registrar {
	return &Registrar{service: service}
}

// Register attaches the MatchingService implementation to the gRPC server.
func (r *Registrar) Register(s *grpc.Server) {
	s.RegisterService(&ServiceDesc, r.service)
}
