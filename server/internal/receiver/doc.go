// Package receiver implements rpc.ResultServiceServer, the gRPC endpoint that
// accepts AnalysisRecord messages from formcheck-agent instances.
//
// Receiver.SendResult runs AnalysisRecord.Validate (codes.InvalidArgument on
// failure), folds the record into the session store and hands analyzed
// records to the alert engine. Authentication is enforced upstream by the
// gRPC server interceptor (see package auth).
package receiver
