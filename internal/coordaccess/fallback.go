package coordaccess

import (
	"fmt"
	"log/slog"

	"roost/internal/config"
	"roost/internal/store"
)

// Session represents a coordination access handle and its cleanup function.
type Session struct {
	Access Access

	// Daemon reports whether this session talks to a running daemon.
	Daemon bool

	close func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback tries the daemon API first, then falls back to opening
// the coordination store directly.
func OpenWithFallback(cfg *config.Config, logger *slog.Logger) (Session, error) {
	if client, err := Dial(cfg.Paths.APIBind, cfg.Paths.APIToken); err == nil {
		return Session{Access: client, Daemon: true}, nil
	}

	backend, err := store.Open(cfg)
	if err != nil {
		return Session{}, fmt.Errorf("open coordination store: %w", err)
	}
	return Session{
		Access: NewDirectAccess(cfg, backend, logger),
		close:  backend.Close,
	}, nil
}
