package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	apperrors "studysync/internal/platform/errors"
)

const (
	PluginMapKey  = "transport"
	serviceName   = "studysync.transport.v1.Transport"
	jsonCodecName = "json"

	// MaxMessageSize bounds a single call in either direction. Audio files
	// travel in one message.
	MaxMessageSize = 256 << 20
)

var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "STUDYSYNC_PLUGIN",
	MagicCookieValue: "transport",
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type Empty struct{}

type Metadata struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

type RootFolderRequest struct {
	Name string `json:"name"`
}

type EnsureFolderRequest struct {
	ParentID string `json:"parent_id"`
	Name     string `json:"name"`
}

type FolderResponse struct {
	ID string `json:"id"`
}

type ListRequest struct {
	FolderID string `json:"folder_id"`
}

type Entry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

type ListResponse struct {
	Entries []Entry `json:"entries"`
}

type DownloadRequest struct {
	FileID string `json:"file_id"`
}

type DownloadResponse struct {
	Content []byte `json:"content"`
}

type UploadRequest struct {
	FolderID    string `json:"folder_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

type UploadResponse struct {
	ID string `json:"id"`
}

type TransportServer interface {
	GetMetadata(ctx context.Context, in *Empty) (*Metadata, error)
	RootFolder(ctx context.Context, in *RootFolderRequest) (*FolderResponse, error)
	EnsureFolder(ctx context.Context, in *EnsureFolderRequest) (*FolderResponse, error)
	ListFolders(ctx context.Context, in *ListRequest) (*ListResponse, error)
	ListFiles(ctx context.Context, in *ListRequest) (*ListResponse, error)
	Download(ctx context.Context, in *DownloadRequest) (*DownloadResponse, error)
	Upload(ctx context.Context, in *UploadRequest) (*UploadResponse, error)
}

type TransportClient interface {
	GetMetadata(ctx context.Context) (*Metadata, error)
	RootFolder(ctx context.Context, in *RootFolderRequest) (*FolderResponse, error)
	EnsureFolder(ctx context.Context, in *EnsureFolderRequest) (*FolderResponse, error)
	ListFolders(ctx context.Context, in *ListRequest) (*ListResponse, error)
	ListFiles(ctx context.Context, in *ListRequest) (*ListResponse, error)
	Download(ctx context.Context, in *DownloadRequest) (*DownloadResponse, error)
	Upload(ctx context.Context, in *UploadRequest) (*UploadResponse, error)
}

type transportClient struct {
	conn grpc.ClientConnInterface
}

func NewTransportClient(conn grpc.ClientConnInterface) TransportClient {
	return &transportClient{conn: conn}
}

func (c *transportClient) invoke(ctx context.Context, method string, in, out any) error {
	return c.conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out, grpc.CallContentSubtype(jsonCodecName))
}

func (c *transportClient) GetMetadata(ctx context.Context) (*Metadata, error) {
	out := &Metadata{}
	if err := c.invoke(ctx, "GetMetadata", &Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *transportClient) RootFolder(ctx context.Context, in *RootFolderRequest) (*FolderResponse, error) {
	out := &FolderResponse{}
	if err := c.invoke(ctx, "RootFolder", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *transportClient) EnsureFolder(ctx context.Context, in *EnsureFolderRequest) (*FolderResponse, error) {
	out := &FolderResponse{}
	if err := c.invoke(ctx, "EnsureFolder", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *transportClient) ListFolders(ctx context.Context, in *ListRequest) (*ListResponse, error) {
	out := &ListResponse{}
	if err := c.invoke(ctx, "ListFolders", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *transportClient) ListFiles(ctx context.Context, in *ListRequest) (*ListResponse, error) {
	out := &ListResponse{}
	if err := c.invoke(ctx, "ListFiles", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *transportClient) Download(ctx context.Context, in *DownloadRequest) (*DownloadResponse, error) {
	out := &DownloadResponse{}
	if err := c.invoke(ctx, "Download", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *transportClient) Upload(ctx context.Context, in *UploadRequest) (*UploadResponse, error) {
	out := &UploadResponse{}
	if err := c.invoke(ctx, "Upload", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func unary[Req, Resp any](method string, call func(context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				out, err := call(ctx, in)
				if err != nil {
					return nil, err
				}
				return out, nil
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				typed, ok := req.(*Req)
				if !ok {
					return nil, fmt.Errorf("invalid request type %T", req)
				}
				out, err := call(ctx, typed)
				if err != nil {
					return nil, err
				}
				return out, nil
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func RegisterTransportServer(server grpc.ServiceRegistrar, impl TransportServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*TransportServer)(nil),
		Methods: []grpc.MethodDesc{
			unary("GetMetadata", impl.GetMetadata),
			unary("RootFolder", impl.RootFolder),
			unary("EnsureFolder", impl.EnsureFolder),
			unary("ListFolders", impl.ListFolders),
			unary("ListFiles", impl.ListFiles),
			unary("Download", impl.Download),
			unary("Upload", impl.Upload),
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "schemas/transport-rpc-v1.proto",
	}, impl)
}

// ToStatus converts a transport error into a gRPC status so the host can
// tell missing entries apart from failures.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, apperrors.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}

// FromStatus is the host side of ToStatus.
func FromStatus(op, target string, err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, st.Message())
	default:
		return apperrors.Transport(op, target, err)
	}
}

type GRPCPlugin struct {
	plugin.NetRPCUnsupportedPlugin
	Impl TransportServer
}

func (p *GRPCPlugin) GRPCServer(_ *plugin.GRPCBroker, server *grpc.Server) error {
	RegisterTransportServer(server, p.Impl)
	return nil
}

func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *plugin.GRPCBroker, conn *grpc.ClientConn) (any, error) {
	return NewTransportClient(conn), nil
}

func PluginMap(impl TransportServer) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginMapKey: &GRPCPlugin{Impl: impl},
	}
}

// Serve runs impl as a plugin process. It blocks until the host disconnects.
func Serve(impl TransportServer) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins:         PluginMap(impl),
		GRPCServer: func(opts []grpc.ServerOption) *grpc.Server {
			opts = append(opts, grpc.MaxRecvMsgSize(MaxMessageSize), grpc.MaxSendMsgSize(MaxMessageSize))
			return plugin.DefaultGRPCServer(opts)
		},
	})
}
