package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"quickex/core"
	"quickex/core/types"
	"quickex/crypto"
	"quickex/native/quickex"
	"quickex/observability/logging"
	"quickex/observability/telemetry"
)

const (
	maxRequestBytes = 1 << 20 // 1 MiB
	requestIDHeader = "X-Request-ID"
	tracerName      = "quickex/rpc"
)

// Observer receives per-request outcomes. observability.ModuleMetrics
// satisfies it.
type Observer interface {
	Observe(method string, code uint32, duration time.Duration)
	RecordAuthRejection(reason string)
}

// EventSource exposes recently committed events. events.Recorder satisfies
// it.
type EventSource interface {
	Events() []*types.Event
}

type ServerConfig struct {
	MaxSkew         time.Duration
	ReplayCacheSize int
	RateLimit       RateLimit
	Logger          *slog.Logger
	// Metrics may be nil. When set, /metrics is mounted.
	Metrics Observer
	// Events backs quickex_recentEvents. The method is unavailable when nil.
	Events EventSource
	// Tracer defaults to the global provider's quickex/rpc tracer.
	Tracer trace.Tracer
}

type Server struct {
	node     *core.Node
	verifier *verifier
	limiter  *rateLimiter
	logger   *slog.Logger
	metrics  Observer
	events   EventSource
	tracer   trace.Tracer
	methods  map[string]method
}

func NewServer(node *core.Node, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer(tracerName)
	}
	s := &Server{
		node:     node,
		verifier: newVerifier(cfg.MaxSkew, cfg.ReplayCacheSize),
		limiter:  newRateLimiter(cfg.RateLimit),
		logger:   logger,
		metrics:  cfg.Metrics,
		events:   cfg.Events,
		tracer:   tracer,
	}
	s.methods = s.methodTable()
	return s
}

// Router mounts the JSON-RPC endpoint, the health probe and, when metrics are
// enabled, the Prometheus handler. RPC routes are wrapped by otelhttp so
// incoming trace context is continued.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rpcHandler := otelhttp.NewHandler(http.HandlerFunc(s.handle), "quickex.rpc")
	r.Method(http.MethodPost, "/", rpcHandler)
	r.Method(http.MethodPost, "/rpc", rpcHandler)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}

func writeError(w http.ResponseWriter, status int, id interface{}, rpcErr *RPCError) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, requestID)
	w.Header().Set("Content-Type", "application/json")
	logger := s.logger.With(slog.String("request_id", requestID))

	if !s.limiter.allow(s.limiter.clientID(r)) {
		writeError(w, http.StatusTooManyRequests, nil, &RPCError{Code: codeServerError, Message: "rate limit exceeded"})
		return
	}

	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()
	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, &RPCError{Code: codeInvalidRequest, Message: message, Data: err.Error()})
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, &RPCError{Code: codeInvalidRequest, Message: "request body required"})
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, &RPCError{Code: codeParseError, Message: "invalid JSON payload", Data: err.Error()})
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, &RPCError{Code: codeInvalidRequest, Message: "unsupported jsonrpc version", Data: req.JSONRPC})
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, &RPCError{Code: codeInvalidRequest, Message: "method required"})
		return
	}
	m, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %s", req.Method)})
		return
	}

	ctx, span := s.tracer.Start(r.Context(), req.Method, trace.WithAttributes(
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.method", req.Method),
		attribute.Bool("quickex.mutating", m.mutating),
		attribute.String("quickex.request_id", requestID),
	))
	defer span.End()

	c := &call{params: req.Params, auth: quickex.AccountSet{}}
	if m.mutating {
		signer, authErr := s.verifier.verify(req)
		if authErr != nil {
			if s.metrics != nil {
				s.metrics.RecordAuthRejection(authErr.reason)
			}
			logger.Warn("rpc auth rejected",
				slog.String("method", req.Method),
				slog.String("reason", authErr.reason))
			span.SetStatus(codes.Error, "auth: "+authErr.reason)
			writeError(w, http.StatusUnauthorized, req.ID, &RPCError{Code: codeUnauthorized, Message: "unauthorized", Data: authErr.Error()})
			return
		}
		c.signer = signer
		c.auth = quickex.NewAccountSet(signer)
		logger = logger.With(logging.MaskField("signer", crypto.AccountAddress(signer).String()))
	}

	result, err := m.handle(ctx, c)
	var code uint32
	if err != nil {
		rpcErr, status, metricCode := toRPCError(err)
		code = metricCode
		span.SetAttributes(attribute.Int("quickex.code", int(code)))
		span.SetStatus(codes.Error, rpcErr.Message)
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "rpc call failed",
			slog.String("method", req.Method),
			slog.Int("code", rpcErr.Code),
			slog.String("error", err.Error()),
			paramsAttr(req.Params))
		writeError(w, status, req.ID, rpcErr)
	} else {
		logger.Debug("rpc call", slog.String("method", req.Method), paramsAttr(req.Params))
		writeResult(w, req.ID, result)
	}
	if s.metrics != nil {
		s.metrics.Observe(req.Method, code, time.Since(start))
	}
}

// paramsAttr logs the single parameter object with private fields masked.
func paramsAttr(params []json.RawMessage) slog.Attr {
	if len(params) != 1 {
		return slog.Group("params")
	}
	return slog.Group("params", logging.ParamAttrs(params[0])...)
}
