package logging

import (
	"log/slog"
	"net/http"
	_ "net/http/pprof" // registers the /debug/pprof handlers
)

const pprofAddr = "localhost:6060"

// startPprof serves the pprof handlers in the background. Only reached when
// PprofEnabled is set; the listener is loopback-only.
func startPprof() {
	go func() {
		Logger().Info("pprof_listening", slog.String("addr", pprofAddr))
		if err := http.ListenAndServe(pprofAddr, nil); err != nil {
			Logger().Error("pprof_failed", slog.String("error", err.Error()))
		}
	}()
}
