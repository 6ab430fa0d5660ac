package functions

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/prepfox/prepfox-ops/internal/core/retry"
)

// invokeMethod is the generic unary method served by the functions gateway.
// Request and response are google.protobuf.Struct.
const invokeMethod = "/prepfox.functions.v1.Functions/Invoke"

// GRPCInvoker calls functions through the gRPC functions gateway.
type GRPCInvoker struct {
	conn   grpc.ClientConnInterface
	closer func() error
	apiKey string
}

// NewGRPCInvoker creates a gRPC invoker for target.
func NewGRPCInvoker(target, apiKey string) (*GRPCInvoker, error) {
	var opts []grpc.DialOption

	if strings.HasPrefix(target, "https://") || strings.HasSuffix(target, ":443") {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}

	return &GRPCInvoker{conn: conn, closer: conn.Close, apiKey: apiKey}, nil
}

// NewGRPCInvokerFromConn wraps an existing connection. Close does not close it.
func NewGRPCInvokerFromConn(conn grpc.ClientConnInterface, apiKey string) *GRPCInvoker {
	return &GRPCInvoker{conn: conn, apiKey: apiKey}
}

// Invoke sends {"function": name, "payload": payload} and decodes the
// response struct into out.
func (i *GRPCInvoker) Invoke(ctx context.Context, name string, payload any, out any) error {
	req, err := newInvokeRequest(name, payload)
	if err != nil {
		return retry.NewError("build request", err, false)
	}

	if i.apiKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+i.apiKey)
	}

	resp := &structpb.Struct{}
	if err := i.conn.Invoke(ctx, invokeMethod, req, resp); err != nil {
		return classifyStatus(name, err)
	}

	if out == nil {
		return nil
	}
	data, err := protojson.Marshal(resp)
	if err != nil {
		return retry.NewError("encode response", err, false)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return retry.NewError("parse response", err, false)
	}
	return nil
}

// Close cleans up resources.
func (i *GRPCInvoker) Close() error {
	if i.closer == nil {
		return nil
	}
	return i.closer()
}

func newInvokeRequest(name string, payload any) (*structpb.Struct, error) {
	var generic any
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &generic); err != nil {
			return nil, err
		}
	}
	return structpb.NewStruct(map[string]any{
		"function": name,
		"payload":  generic,
	})
}

// classifyStatus tags gRPC status errors. Servers may force a retry by
// attaching RetryInfo regardless of the code.
func classifyStatus(name string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("invoke %s: %w", name, err)
	}

	retryable := false
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		retryable = true
	}
	for _, d := range st.Details() {
		if _, ok := d.(*errdetails.RetryInfo); ok {
			retryable = true
		}
	}

	return retry.NewError("invoke "+name, err, retryable)
}
