package proxymap

import (
	"log/slog"
	"net"
	"time"

	"github.com/athena-mta/verigate/internal/attrproto"
	"github.com/athena-mta/verigate/internal/metrics"
	"github.com/athena-mta/verigate/internal/table"
)

// Request names.
const (
	ReqOpen   = "proxy_req_open"
	ReqLookup = "proxy_req_lookup"
)

// Reply status strings.
const (
	StatOK    = "PROXY_STAT_OK"
	StatNoKey = "PROXY_STAT_NOKEY"
	StatRetry = "PROXY_STAT_RETRY"
	StatBad   = "PROXY_STAT_BAD"
	StatDeny  = "PROXY_STAT_DENY"
)

// Service dispatches OPEN/LOOKUP requests repeatedly over a single
// connection. Handle sharing across requests on the same client is the
// point of the service.
type Service struct {
	allow   *Allowlist
	handles *HandleCache
	logger  *slog.Logger
}

// NewService builds a proxy request handler.
func NewService(allow *Allowlist, handles *HandleCache, logger *slog.Logger) *Service {
	return &Service{allow: allow, handles: handles, logger: logger}
}

// Handle serves requests off conn until the client disconnects or a
// framing error occurs.
func (s *Service) Handle(conn net.Conn) error {
	reader := attrproto.NewReader(conn, false)
	writer := attrproto.NewWriter(conn)

	for {
		attrs, err := reader.ScanAll()
		if err != nil {
			return err
		}

		start := time.Now()
		request := attrs["request"].Str
		var status string
		switch request {
		case ReqOpen:
			status, err = s.handleOpen(attrs, writer)
		case ReqLookup:
			status, err = s.handleLookup(attrs, writer)
		default:
			s.logger.Warn("unknown proxy request", "request", request)
			status = StatBad
			err = s.reply(writer, status, "")
		}
		metrics.ProxyRequests.WithLabelValues(request, status).Inc()
		metrics.ProxyRequestDuration.WithLabelValues(request).Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
	}
}

func (s *Service) reply(w *attrproto.Writer, status, value string) error {
	if err := w.PrintStr("status", status); err != nil {
		return err
	}
	if err := w.PrintStr("value", value); err != nil {
		return err
	}
	return w.End()
}

func (s *Service) handleOpen(attrs map[string]attrproto.Attr, w *attrproto.Writer) (string, error) {
	ref := attrs["table"].Str
	flags := int(attrs["flags"].Num)

	canonical, allowed, malformed := s.allow.Allowed(ref)
	if malformed {
		return StatBad, s.reply(w, StatBad, "")
	}
	if !allowed {
		metrics.ProxyDenied.Inc()
		return StatDeny, s.reply(w, StatDeny, "")
	}

	before := s.handles.Count()
	t, err := s.handles.Get(canonical, flags)
	if err != nil {
		s.logger.Error("opening proxy table handle", "table", canonical, "error", err)
		metrics.ProxyHandleOpens.WithLabelValues("failed").Inc()
		return StatBad, s.reply(w, StatBad, "")
	}
	if s.handles.Count() > before {
		metrics.ProxyHandleOpens.WithLabelValues("new").Inc()
	} else {
		metrics.ProxyHandleOpens.WithLabelValues("reused").Inc()
	}
	metrics.ProxyHandlesOpen.Set(float64(s.handles.Count()))

	if err := w.PrintStr("status", StatOK); err != nil {
		return StatOK, err
	}
	if err := w.PrintNum("flags", int64(t.Flags())); err != nil {
		return StatOK, err
	}
	return StatOK, w.End()
}

func (s *Service) handleLookup(attrs map[string]attrproto.Attr, w *attrproto.Writer) (string, error) {
	ref := attrs["table"].Str
	flags := int(attrs["flags"].Num)
	key := attrs["key"].Str

	canonical, allowed, malformed := s.allow.Allowed(ref)
	if malformed {
		return StatBad, s.reply(w, StatBad, "")
	}
	if !allowed {
		metrics.ProxyDenied.Inc()
		return StatDeny, s.reply(w, StatDeny, "")
	}

	t, err := s.handles.Get(canonical, flags)
	if err != nil {
		s.logger.Error("opening proxy table handle", "table", canonical, "error", err)
		return StatBad, s.reply(w, StatBad, "")
	}

	value, result := t.Get(key)
	switch result {
	case table.ResultOK:
		return StatOK, s.reply(w, StatOK, value)
	case table.ResultNoKey:
		return StatNoKey, s.reply(w, StatNoKey, "")
	case table.ResultRetry:
		return StatRetry, s.reply(w, StatRetry, "")
	default:
		return StatBad, s.reply(w, StatBad, "")
	}
}
