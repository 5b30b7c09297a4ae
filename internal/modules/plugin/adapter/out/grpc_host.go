package out

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"

	pluginrpc "studysync/internal/modules/plugin/adapter/out/rpc"
	"studysync/internal/modules/plugin/domain"
	pluginout "studysync/internal/modules/plugin/port/out"
)

const (
	defaultStartTimeout = 3 * time.Second
	defaultCallTimeout  = 30 * time.Second
)

type HostOptions struct {
	StartTimeout time.Duration
	// CallTimeout applies to calls whose context carries no deadline.
	CallTimeout time.Duration
	// Logger receives the plugin process output. Nil discards it.
	Logger hclog.Logger
}

type GRPCHost struct {
	opts HostOptions
}

func NewGRPCHost(opts HostOptions) pluginout.Host {
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = defaultStartTimeout
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	return &GRPCHost{opts: opts}
}

func (h *GRPCHost) CheckLifecycle(ctx context.Context, manifest domain.Manifest) error {
	_, err := h.GetMetadata(ctx, manifest)
	return err
}

func (h *GRPCHost) GetMetadata(ctx context.Context, manifest domain.Manifest) (domain.Metadata, error) {
	client, closeFn, err := h.connect(manifest)
	if err != nil {
		return domain.Metadata{}, err
	}
	defer closeFn()

	callCtx, cancel := h.callContext(ctx)
	defer cancel()
	meta, err := client.GetMetadata(callCtx)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("get metadata: %w", err)
	}
	capabilities := make([]domain.Capability, 0, len(meta.Capabilities))
	for _, capability := range meta.Capabilities {
		capabilities = append(capabilities, domain.Capability(capability))
	}
	return domain.Metadata{Name: meta.Name, Version: meta.Version, Capabilities: capabilities}, nil
}

// Open keeps the plugin process running until the session is closed.
func (h *GRPCHost) Open(ctx context.Context, manifest domain.Manifest) (pluginout.Session, error) {
	client, closeFn, err := h.connect(manifest)
	if err != nil {
		return nil, err
	}
	callCtx, cancel := h.callContext(ctx)
	defer cancel()
	if _, err := client.GetMetadata(callCtx); err != nil {
		closeFn()
		return nil, fmt.Errorf("get metadata: %w", err)
	}
	return &grpcSession{host: h, name: manifest.Name, client: client, closeFn: closeFn}, nil
}

func (h *GRPCHost) connect(manifest domain.Manifest) (pluginrpc.TransportClient, func(), error) {
	cmd := exec.Command(manifest.Binary, manifest.Args...)
	cmd.Env = os.Environ()
	for k, v := range manifest.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  pluginrpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          pluginrpc.PluginMap(nil),
		Cmd:              cmd,
		Managed:          true,
		StartTimeout:     h.opts.StartTimeout,
		Logger:           h.opts.Logger.Named(manifest.Name),
		GRPCDialOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(pluginrpc.MaxMessageSize),
				grpc.MaxCallSendMsgSize(pluginrpc.MaxMessageSize),
			),
		},
	})
	closeFn := func() { client.Kill() }

	rpcClient, err := client.Client()
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("start plugin client: %w", err)
	}
	raw, err := rpcClient.Dispense(pluginrpc.PluginMapKey)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("dispense plugin: %w", err)
	}
	typed, ok := raw.(pluginrpc.TransportClient)
	if !ok {
		closeFn()
		return nil, nil, fmt.Errorf("plugin rpc client type mismatch")
	}
	return typed, closeFn, nil
}

func (h *GRPCHost) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, h.opts.CallTimeout)
}

type grpcSession struct {
	host    *GRPCHost
	name    string
	client  pluginrpc.TransportClient
	once    sync.Once
	closeFn func()
}

func (s *grpcSession) RootFolder(ctx context.Context, name string) (string, error) {
	ctx, cancel := s.host.callContext(ctx)
	defer cancel()
	out, err := s.client.RootFolder(ctx, &pluginrpc.RootFolderRequest{Name: name})
	if err != nil {
		return "", pluginrpc.FromStatus("root folder", name, err)
	}
	return out.ID, nil
}

func (s *grpcSession) EnsureFolder(ctx context.Context, parentID, name string) (string, error) {
	ctx, cancel := s.host.callContext(ctx)
	defer cancel()
	out, err := s.client.EnsureFolder(ctx, &pluginrpc.EnsureFolderRequest{ParentID: parentID, Name: name})
	if err != nil {
		return "", pluginrpc.FromStatus("ensure folder", name, err)
	}
	return out.ID, nil
}

func (s *grpcSession) ListFolders(ctx context.Context, parentID string) ([]domain.Entry, error) {
	ctx, cancel := s.host.callContext(ctx)
	defer cancel()
	out, err := s.client.ListFolders(ctx, &pluginrpc.ListRequest{FolderID: parentID})
	if err != nil {
		return nil, pluginrpc.FromStatus("list", parentID, err)
	}
	return toEntries(out.Entries), nil
}

func (s *grpcSession) ListFiles(ctx context.Context, folderID string) ([]domain.Entry, error) {
	ctx, cancel := s.host.callContext(ctx)
	defer cancel()
	out, err := s.client.ListFiles(ctx, &pluginrpc.ListRequest{FolderID: folderID})
	if err != nil {
		return nil, pluginrpc.FromStatus("list", folderID, err)
	}
	return toEntries(out.Entries), nil
}

func (s *grpcSession) Download(ctx context.Context, fileID string) ([]byte, error) {
	ctx, cancel := s.host.callContext(ctx)
	defer cancel()
	out, err := s.client.Download(ctx, &pluginrpc.DownloadRequest{FileID: fileID})
	if err != nil {
		return nil, pluginrpc.FromStatus("download", fileID, err)
	}
	return out.Content, nil
}

func (s *grpcSession) Upload(ctx context.Context, folderID, name, contentType string, content []byte) (string, error) {
	ctx, cancel := s.host.callContext(ctx)
	defer cancel()
	out, err := s.client.Upload(ctx, &pluginrpc.UploadRequest{FolderID: folderID, Name: name, ContentType: contentType, Content: content})
	if err != nil {
		return "", pluginrpc.FromStatus("upload", name, err)
	}
	return out.ID, nil
}

func (s *grpcSession) Close() {
	s.once.Do(s.closeFn)
}

func toEntries(in []pluginrpc.Entry) []domain.Entry {
	out := make([]domain.Entry, 0, len(in))
	for _, e := range in {
		out = append(out, domain.Entry{ID: e.ID, Name: e.Name, Size: e.Size, ModifiedAt: e.ModifiedAt})
	}
	return out
}
