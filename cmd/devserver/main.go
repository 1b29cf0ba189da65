// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/weavesync/weavesync/internal/devserver"
	"github.com/weavesync/weavesync/internal/logger"
)

func main() {
	var addr, username, password string
	flag.StringVar(&addr, "a", "localhost:5000", "Listen address host:port")
	flag.StringVar(&username, "username", "dev", "Basic auth username handed out by the token endpoint")
	flag.StringVar(&password, "password", "dev-secret", "Basic auth password handed out by the token endpoint")
	flag.Parse()

	log := logger.NewLogger("devserver")

	h := devserver.NewHandler(devserver.NewStore(), devserver.Credentials{
		Username: username,
		Password: password,
	}, log)

	srv := &http.Server{Addr: addr, Handler: h.Init()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("addr", addr).Msg("dev storage server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("listen")
	}
}
