// Package rpc declares the formcheck.v1.ResultService gRPC service used by
// formcheck-agent to deliver types.AnalysisRecord values to formcheck-server.
//
// Messages are JSON-encoded. The package registers a gRPC codec under the
// content-subtype "json"; clients built with NewResultServiceClient select
// it on every call, and servers pick it from the request's content type.
//
// The service has a single unary method:
//
//	rpc SendResult(AnalysisRecord) returns (SendResponse)
package rpc
