// Package proto holds the gRPC contract of the auth service, generated from
// auth.proto.
//
//go:generate protoc --go_out=. --go_opt=paths=source_relative --go-grpc_out=. --go-grpc_opt=paths=source_relative auth.proto
package proto
