package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	clamd "github.com/dutchcoders/go-clamd"

	"contentvault/internal/domain/services"
)

// ClamScanner is the clamd-backed antivirus collaborator. The daemon is
// optional; callers check Ping and pass a nil Scanner when it is absent.
type ClamScanner struct {
	clam   *clamd.Clamd
	logger *slog.Logger
}

// NewClamScanner connects to a clamd TCP address (host:port)
func NewClamScanner(address string, logger *slog.Logger) *ClamScanner {
	return &ClamScanner{
		clam:   clamd.NewClamd("tcp://" + address),
		logger: logger,
	}
}

// Ping checks that the daemon is reachable
func (s *ClamScanner) Ping() error {
	return s.clam.Ping()
}

// Scan streams the content to clamd and maps the response to a verdict.
// Protocol errors yield VerdictIndeterminate, not a hard failure.
func (s *ClamScanner) Scan(ctx context.Context, data []byte) (services.ScanVerdict, error) {
	abort := make(chan bool)
	defer close(abort)

	responses, err := s.clam.ScanStream(bytes.NewReader(data), abort)
	if err != nil {
		return services.VerdictIndeterminate, fmt.Errorf("clamd scan: %w", err)
	}

	for res := range responses {
		switch res.Status {
		case clamd.RES_OK:
			return services.VerdictClean, nil
		case clamd.RES_FOUND:
			s.logger.Warn("malware found", "signature", res.Description)
			return services.VerdictInfected, nil
		case clamd.RES_ERROR, clamd.RES_PARSE_ERROR:
			s.logger.Warn("clamd error response", "raw", res.Raw)
			return services.VerdictIndeterminate, nil
		}
	}

	return services.VerdictIndeterminate, nil
}
