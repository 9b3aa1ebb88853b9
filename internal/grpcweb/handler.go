// Package grpcweb bridges browser gRPC-Web calls (HTTP/1.1) to the native
// gRPC server. Message bytes are passed through untouched.
package grpcweb

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"automedic-booking/internal/api"
)

const (
	maxBody     = 1 << 20
	contentType = "application/grpc-web+" + api.CodecName

	flagData    byte = 0x00
	flagTrailer byte = 0x80
)

// forwarded request headers, lowercased for grpc metadata
var passHeaders = []string{"authorization", "x-forwarded-for"}

// Bridge translates gRPC-Web → gRPC over a client connection.
type Bridge struct {
	conn *grpc.ClientConn
	log  *zap.Logger
}

// New creates a client for the gRPC server at target (e.g. "localhost:50051").
func New(target string, log *zap.Logger, opts ...grpc.DialOption) (*Bridge, error) {
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcweb dial: %w", err)
	}
	return &Bridge{conn: conn, log: log.With(zap.String("component", "grpcweb"))}, nil
}

func (b *Bridge) Close() error { return b.conn.Close() }

// Handler serves POST /<service>/<method>. CORS is left to the router.
func (b *Bridge) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc-web") {
			http.Error(w, "not grpc-web", http.StatusUnsupportedMediaType)
			return
		}
		// server streams need a streaming transport, not supported here
		if r.URL.Path == api.MethodWatchAvailability {
			writeError(w, status.New(codes.Unimplemented, "streaming not supported over grpc-web"))
			return
		}

		b.log.Debug("grpc-web →", zap.String("method", r.URL.Path))
		b.forward(w, r)
	})
}

func (b *Bridge) forward(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, status.New(codes.InvalidArgument, "read body failed"))
		return
	}
	payload, err := unframe(body)
	if err != nil {
		writeError(w, status.New(codes.InvalidArgument, err.Error()))
		return
	}

	md := metadata.MD{}
	for _, h := range passHeaders {
		if vals := r.Header.Values(h); len(vals) > 0 {
			md.Set(h, vals...)
		}
	}
	// the server sees the bridge as the peer; pass on the browser address
	// (already resolved by chi's RealIP when mounted behind the router)
	if ip := remoteIP(r.RemoteAddr); ip != "" {
		md.Set("x-real-ip", ip)
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		md.Set("x-request-id", id)
	}
	ctx := metadata.NewOutgoingContext(r.Context(), md)

	var header, trailer metadata.MD
	resp := &rawMsg{}
	err = b.conn.Invoke(ctx, r.URL.Path, &rawMsg{data: payload}, resp,
		grpc.ForceCodec(rawCodec{}), grpc.Header(&header), grpc.Trailer(&trailer))
	if err != nil {
		st := status.Convert(err)
		b.log.Info("grpc-web error",
			zap.String("method", r.URL.Path),
			zap.String("code", st.Code().String()),
			zap.String("message", st.Message()),
		)
		writeError(w, st)
		return
	}

	writeSuccess(w, header, trailer, resp.data)
}

// remoteIP accepts both "host:port" and the bare address chi's RealIP
// leaves in RemoteAddr.
func remoteIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if net.ParseIP(addr) == nil {
		return ""
	}
	return addr
}

// unframe returns the message of the first grpc-web data frame:
// 1-byte flag + 4-byte big-endian length + message.
func unframe(body []byte) ([]byte, error) {
	if len(body) < 5 {
		return nil, errors.New("body too short")
	}
	if body[0] != flagData {
		return nil, errors.New("compressed or trailer frame not accepted")
	}
	n := binary.BigEndian.Uint32(body[1:5])
	if uint64(n)+5 > uint64(len(body)) {
		return nil, errors.New("incomplete frame")
	}
	return body[5 : 5+n], nil
}

func frame(flag byte, data []byte) []byte {
	f := make([]byte, 5+len(data))
	f[0] = flag
	binary.BigEndian.PutUint32(f[1:5], uint32(len(data)))
	copy(f[5:], data)
	return f
}

// rawMsg wraps already-encoded message bytes.
type rawMsg struct{ data []byte }

// rawCodec passes bytes through. It keeps the service codec name so the
// server sees the content-subtype it expects.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	return v.(*rawMsg).data, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	m := v.(*rawMsg)
	m.data = append([]byte(nil), data...)
	return nil
}

func (rawCodec) Name() string { return api.CodecName }

func trailerBlock(st *status.Status, md metadata.MD) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "grpc-status:%d\r\n", st.Code())
	if msg := st.Message(); msg != "" {
		fmt.Fprintf(&sb, "grpc-message:%s\r\n", url.PathEscape(msg))
	}
	if len(st.Details()) > 0 {
		if b, err := proto.Marshal(st.Proto()); err == nil {
			fmt.Fprintf(&sb, "grpc-status-details-bin:%s\r\n", base64.RawStdEncoding.EncodeToString(b))
		}
	}
	for k, vals := range md {
		for _, v := range vals {
			fmt.Fprintf(&sb, "%s:%s\r\n", k, v)
		}
	}
	return []byte(sb.String())
}

func writeError(w http.ResponseWriter, st *status.Status) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(frame(flagTrailer, trailerBlock(st, nil)))
}

func writeSuccess(w http.ResponseWriter, header, trailer metadata.MD, data []byte) {
	for k, vals := range header {
		if strings.HasPrefix(k, ":") || k == "content-type" {
			continue
		}
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(frame(flagData, data))
	w.Write(frame(flagTrailer, trailerBlock(status.New(codes.OK, ""), trailer)))
}
