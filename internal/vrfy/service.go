package vrfy

import (
	"log/slog"
	"net"
	"time"

	"github.com/athena-mta/verigate/internal/attrproto"
	"github.com/athena-mta/verigate/internal/metrics"
)

// Request names.
const (
	ReqQuery  = "vrfy_req_query"
	ReqUpdate = "vrfy_req_update"
)

// Service dispatches VRFY_REQ_QUERY / VRFY_REQ_UPDATE requests to a Cache.
// Each connection carries exactly one request: the handler flushes and
// returns, yielding the client back to the accept loop.
type Service struct {
	cache  *Cache
	logger *slog.Logger
}

// NewService builds a request handler over cache.
func NewService(cache *Cache, logger *slog.Logger) *Service {
	return &Service{cache: cache, logger: logger}
}

// Handle processes exactly one request read from conn.
func (s *Service) Handle(conn net.Conn) error {
	start := time.Now()
	reader := attrproto.NewReader(conn, false)
	writer := attrproto.NewWriter(conn)

	attrs, err := reader.ScanAll()
	if err != nil {
		return err
	}

	request := attrs["request"].Str
	defer func() {
		metrics.VrfyRequestDuration.WithLabelValues(request).Observe(time.Since(start).Seconds())
	}()

	switch request {
	case ReqQuery:
		return s.handleQuery(attrs, writer)
	case ReqUpdate:
		return s.handleUpdate(attrs, writer)
	default:
		s.logger.Warn("unknown vrfy request", "request", request)
		_ = writer.PrintStr("status", "BAD")
		return writer.End()
	}
}

func (s *Service) handleQuery(attrs map[string]attrproto.Attr, writer *attrproto.Writer) error {
	addr := attrs["address"].Str
	status, text := s.cache.Query(addr)

	_ = writer.PrintStr("status", "OK")
	_ = writer.PrintStr("addr_status", status.String())
	_ = writer.PrintStr("why", text)
	return writer.End()
}

func (s *Service) handleUpdate(attrs map[string]attrproto.Attr, writer *attrproto.Writer) error {
	addr := attrs["address"].Str
	text := attrs["why"].Str

	status, ok := ParseStatus(attrs["addr_status"].Str)
	if !ok || status == StatusTodo {
		s.logger.Warn("vrfy update rejected: invalid addr_status", "address", addr, "addr_status", attrs["addr_status"].Str)
		_ = writer.PrintStr("status", "BAD")
		return writer.End()
	}

	result := s.cache.Update(addr, status, text)
	if result == UpdateBad {
		_ = writer.PrintStr("status", "BAD")
		return writer.End()
	}
	_ = writer.PrintStr("status", "OK")
	return writer.End()
}
